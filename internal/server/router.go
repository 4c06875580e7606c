// Package server exposes the supervisor over HTTP for the serve mode: the
// JSON counterpart of the CLI plus the Prometheus endpoint. It replaces the
// ad-hoc dashboard process the shell era used for monitoring.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fuliji/spiderctl/internal/metrics"
	"github.com/fuliji/spiderctl/internal/supervisor"
)

// Router wraps a Supervisor with HTTP handlers.
// Endpoints:
//
//	GET  /api/status            all workers
//	GET  /api/status?name=x     one worker
//	POST /api/start?name=x
//	POST /api/stop?name=x
//	POST /api/restart?name=x
//	POST /api/clean
//	GET  /api/logs?name=x&n=50
//	GET  /metrics
type Router struct {
	sup *supervisor.Supervisor
}

func NewRouter(sup *supervisor.Supervisor) *Router { return &Router{sup: sup} }

// Handler returns a gin-powered http.Handler that can be mounted anywhere.
func (r *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	api := g.Group("/api")
	api.GET("/status", r.handleStatus)
	api.POST("/start", r.handleStart)
	api.POST("/stop", r.handleStop)
	api.POST("/restart", r.handleRestart)
	api.POST("/clean", r.handleClean)
	api.GET("/logs", r.handleLogs)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr for this router.
func NewServer(addr string, sup *supervisor.Supervisor) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(sup).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

type errorResp struct {
	Error string `json:"error"`
}

func (r *Router) handleStatus(c *gin.Context) {
	if name := c.Query("name"); name != "" {
		st, err := r.sup.Status(c.Request.Context(), name)
		if err != nil {
			c.JSON(statusFor(err), errorResp{Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, st)
		return
	}
	c.JSON(http.StatusOK, r.sup.StatusAll(c.Request.Context()))
}

func (r *Router) handleStart(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, errorResp{Error: "name required"})
		return
	}
	st, err := r.sup.Start(c.Request.Context(), name)
	if err != nil {
		c.JSON(statusFor(err), errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (r *Router) handleStop(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, errorResp{Error: "name required"})
		return
	}
	if err := r.sup.Stop(c.Request.Context(), name); err != nil {
		c.JSON(statusFor(err), errorResp{Error: err.Error()})
		return
	}
	st, _ := r.sup.Status(c.Request.Context(), name)
	c.JSON(http.StatusOK, st)
}

func (r *Router) handleRestart(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, errorResp{Error: "name required"})
		return
	}
	st, err := r.sup.Restart(c.Request.Context(), name)
	if err != nil {
		c.JSON(statusFor(err), errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (r *Router) handleClean(c *gin.Context) {
	res, err := r.sup.Clean(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleLogs(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, errorResp{Error: "name required"})
		return
	}
	n := 50
	if raw := c.Query("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, errorResp{Error: "n must be a positive integer"})
			return
		}
		n = v
	}
	path, lines, err := r.sup.Logs(name, n)
	if err != nil {
		c.JSON(statusFor(err), errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path, "lines": lines})
}

// statusFor maps the supervisor's error taxonomy onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, supervisor.ErrUnknownWorker):
		return http.StatusNotFound
	case errors.Is(err, supervisor.ErrAlreadyRunning), errors.Is(err, supervisor.ErrNotRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

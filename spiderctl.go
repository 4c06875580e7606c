package spiderctl

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fuliji/spiderctl/internal/config"
	"github.com/fuliji/spiderctl/internal/env"
	"github.com/fuliji/spiderctl/internal/history"
	"github.com/fuliji/spiderctl/internal/history/factory"
	"github.com/fuliji/spiderctl/internal/metrics"
	"github.com/fuliji/spiderctl/internal/server"
	"github.com/fuliji/spiderctl/internal/supervisor"
	"github.com/fuliji/spiderctl/internal/worker"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Spec = worker.Spec

type Status = supervisor.Status

type Options = supervisor.Options

type CleanResult = supervisor.CleanResult

type Config = config.Config

type HistorySink = history.Sink

// Supervisor is a thin facade over internal/supervisor.Supervisor.
// It provides a stable public API for embedding.

type Supervisor struct {
	inner *supervisor.Supervisor
	sink  history.Sink
}

// New assembles a supervisor from a resolved config. A non-empty HistoryDSN
// opens the matching history sink; close it with Close.
func New(cfg *Config) (*Supervisor, error) {
	e := env.New()
	e.SetAll(cfg.Env)

	var sink history.Sink
	if cfg.HistoryDSN != "" {
		s, err := factory.NewSinkFromDSN(cfg.HistoryDSN)
		if err != nil {
			return nil, err
		}
		sink = s
	}
	inner, err := supervisor.New(supervisor.Config{
		Registry: cfg.Registry,
		Root:     cfg.Root,
		PIDDir:   cfg.PIDDir,
		LogDir:   cfg.LogDir,
		Options:  cfg.Options,
		Env:      e,
		Sink:     sink,
	})
	if err != nil {
		if sink != nil {
			_ = sink.Close()
		}
		return nil, err
	}
	return &Supervisor{inner: inner, sink: sink}, nil
}

// Close releases the history sink, if any. Safe on a supervisor built
// without a history DSN.
func (s *Supervisor) Close() error {
	if s.sink == nil {
		return nil
	}
	return s.sink.Close()
}

func (s *Supervisor) Workers() []string { return s.inner.Workers() }
func (s *Supervisor) Start(ctx context.Context, name string) (Status, error) {
	return s.inner.Start(ctx, name)
}
func (s *Supervisor) Stop(ctx context.Context, name string) error { return s.inner.Stop(ctx, name) }
func (s *Supervisor) Restart(ctx context.Context, name string) (Status, error) {
	return s.inner.Restart(ctx, name)
}
func (s *Supervisor) Status(ctx context.Context, name string) (Status, error) {
	return s.inner.Status(ctx, name)
}
func (s *Supervisor) StatusAll(ctx context.Context) []Status { return s.inner.StatusAll(ctx) }
func (s *Supervisor) Clean(ctx context.Context) (CleanResult, error) {
	return s.inner.Clean(ctx)
}
func (s *Supervisor) Logs(name string, n int) (string, []string, error) {
	return s.inner.Logs(name, n)
}

// Lifecycle error sentinels for errors.Is at the call site.
var (
	ErrUnknownWorker  = supervisor.ErrUnknownWorker
	ErrAlreadyRunning = supervisor.ErrAlreadyRunning
	ErrNotRunning     = supervisor.ErrNotRunning
	ErrLaunchFailed   = supervisor.ErrLaunchFailed
	ErrStopFailed     = supervisor.ErrStopFailed
	ErrWrongDirectory = config.ErrWrongDirectory
)

// LoadConfig reads the project config file; the file's directory becomes the
// project root.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// NewHTTPServer returns an HTTP server exposing the monitoring API for the
// given supervisor.
func NewHTTPServer(addr string, s *Supervisor) *http.Server {
	return server.NewServer(addr, s.inner)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

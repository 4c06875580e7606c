package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fuliji/spiderctl/internal/config"
	"github.com/fuliji/spiderctl/internal/env"
	"github.com/fuliji/spiderctl/internal/history"
	"github.com/fuliji/spiderctl/internal/history/factory"
	"github.com/fuliji/spiderctl/internal/logger"
	"github.com/fuliji/spiderctl/internal/metrics"
	"github.com/fuliji/spiderctl/internal/server"
	"github.com/fuliji/spiderctl/internal/supervisor"
)

// Status labels kept from the original operator tooling; the dashboards
// grep for these exact strings.
const (
	labelRunning = "运行中"
	labelStopped = "停止"
)

type command struct {
	flags *GlobalFlags
}

// setup loads the project config and assembles the supervisor. The returned
// closer releases the history sink.
func (c *command) setup() (*config.Config, *supervisor.Supervisor, func(), error) {
	cfg, err := config.Load(c.flags.ConfigPath)
	if err != nil {
		return nil, nil, nil, err
	}
	log := logger.New(cfg.Log)

	e := env.New()
	e.SetAll(cfg.Env)

	closer := func() {}
	var sink history.Sink
	if cfg.HistoryDSN != "" {
		sink, err = factory.NewSinkFromDSN(cfg.HistoryDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open history sink: %w", err)
		}
		closer = func() { _ = sink.Close() }
	}
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		closer()
		return nil, nil, nil, err
	}

	sup, err := supervisor.New(supervisor.Config{
		Registry: cfg.Registry,
		Root:     cfg.Root,
		PIDDir:   cfg.PIDDir,
		LogDir:   cfg.LogDir,
		Options:  cfg.Options,
		Env:      e,
		Sink:     sink,
		Logger:   log,
	})
	if err != nil {
		closer()
		return nil, nil, nil, err
	}
	return cfg, sup, closer, nil
}

func stateLabel(st supervisor.Status) string {
	if st.Running {
		return labelRunning
	}
	return labelStopped
}

func printStatus(st supervisor.Status) {
	if st.Running {
		fmt.Printf("%-14s %-4s pid=%d started=%s log=%s\n",
			st.Name, stateLabel(st), st.PID,
			st.StartedAt.Format("2006-01-02 15:04:05"), st.LatestLog)
		return
	}
	fmt.Printf("%-14s %s\n", st.Name, stateLabel(st))
}

func (c *command) Start(name string) error {
	_, sup, closeSink, err := c.setup()
	if err != nil {
		return err
	}
	defer closeSink()

	st, err := sup.Start(context.Background(), name)
	if err != nil {
		return err
	}
	fmt.Printf("started %s pid=%d log=%s\n", st.Name, st.PID, st.LatestLog)
	return nil
}

func (c *command) Stop(name string) error {
	_, sup, closeSink, err := c.setup()
	if err != nil {
		return err
	}
	defer closeSink()

	if err := sup.Stop(context.Background(), name); err != nil {
		return err
	}
	fmt.Printf("stopped %s\n", name)
	return nil
}

func (c *command) Restart(name string) error {
	_, sup, closeSink, err := c.setup()
	if err != nil {
		return err
	}
	defer closeSink()

	st, err := sup.Restart(context.Background(), name)
	if err != nil {
		return err
	}
	fmt.Printf("restarted %s pid=%d log=%s\n", st.Name, st.PID, st.LatestLog)
	return nil
}

// Status prints one worker when name is given, the whole fleet otherwise.
func (c *command) Status(name string) error {
	_, sup, closeSink, err := c.setup()
	if err != nil {
		return err
	}
	defer closeSink()

	if name != "" {
		st, err := sup.Status(context.Background(), name)
		if err != nil {
			return err
		}
		printStatus(st)
		return nil
	}
	for _, st := range sup.StatusAll(context.Background()) {
		printStatus(st)
	}
	return nil
}

func (c *command) Logs(name string, f LogsFlags) error {
	_, sup, closeSink, err := c.setup()
	if err != nil {
		return err
	}
	defer closeSink()

	path, lines, err := sup.Logs(name, f.Lines)
	if err != nil {
		return err
	}
	fmt.Printf("==> %s <==\n", path)
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

func (c *command) List() error {
	cfg, _, closeSink, err := c.setup()
	if err != nil {
		return err
	}
	defer closeSink()

	for _, spec := range cfg.Registry.Specs() {
		fmt.Printf("%-14s %s\n", spec.Name, spec.Command)
	}
	return nil
}

// StartAll launches every registered worker in registry order. Workers that
// are already running are reported and skipped; other failures are collected
// so one broken worker does not block the rest of the fleet.
func (c *command) StartAll() error {
	_, sup, closeSink, err := c.setup()
	if err != nil {
		return err
	}
	defer closeSink()

	var failed int
	ctx := context.Background()
	for _, name := range sup.Workers() {
		st, err := sup.Start(ctx, name)
		switch {
		case errors.Is(err, supervisor.ErrAlreadyRunning):
			fmt.Printf("%-14s already running\n", name)
		case err != nil:
			failed++
			fmt.Printf("%-14s failed: %v\n", name, err)
		default:
			fmt.Printf("%-14s started pid=%d\n", name, st.PID)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d worker(s) failed to start", failed)
	}
	return nil
}

func (c *command) StopAll() error {
	_, sup, closeSink, err := c.setup()
	if err != nil {
		return err
	}
	defer closeSink()

	var failed int
	ctx := context.Background()
	for _, name := range sup.Workers() {
		err := sup.Stop(ctx, name)
		switch {
		case errors.Is(err, supervisor.ErrNotRunning):
			fmt.Printf("%-14s not running\n", name)
		case err != nil:
			failed++
			fmt.Printf("%-14s failed: %v\n", name, err)
		default:
			fmt.Printf("%-14s stopped\n", name)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d worker(s) failed to stop", failed)
	}
	return nil
}

func (c *command) Clean() error {
	_, sup, closeSink, err := c.setup()
	if err != nil {
		return err
	}
	defer closeSink()

	res, err := sup.Clean(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("removed %d old log file(s), purged %d stale pid record(s)\n",
		res.RemovedLogs, len(res.PurgedRecords))
	return nil
}

// Serve runs the monitoring HTTP server until SIGINT or SIGTERM.
func (c *command) Serve(f ServeFlags) error {
	cfg, sup, closeSink, err := c.setup()
	if err != nil {
		return err
	}
	defer closeSink()

	addr := f.Listen
	if addr == "" {
		addr = cfg.Listen
	}
	srv := server.NewServer(addr, sup)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "serving on %s\n", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

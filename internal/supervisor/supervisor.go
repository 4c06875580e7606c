// Package supervisor implements the one-shot worker lifecycle: pid files
// under a dedicated directory are the only durable state, and liveness is
// re-established from the OS on every invocation.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fuliji/spiderctl/internal/detector"
	"github.com/fuliji/spiderctl/internal/env"
	"github.com/fuliji/spiderctl/internal/history"
	"github.com/fuliji/spiderctl/internal/metrics"
	"github.com/fuliji/spiderctl/internal/worker"
)

// Worker states surfaced by Status.
const (
	StateRunning = "running"
	StateStopped = "stopped"
)

// logStampFormat names a worker's log file for one run: {name}_{stamp}.log.
const logStampFormat = "20060102_150405"

// Status is the observable state of one worker.
type Status struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	LatestLog string    `json:"latest_log,omitempty"`
	State     string    `json:"state"`
}

// Options are the timing windows of the lifecycle operations.
type Options struct {
	GraceInterval time.Duration // a start that dies within this window is a launch failure
	StopWait      time.Duration // graceful termination window before SIGKILL
	PollInterval  time.Duration // liveness polling step inside the windows
	KillWait      time.Duration // final wait after SIGKILL
	RestartPause  time.Duration // pause between stop and start on restart
	LogRetention  time.Duration // clean removes logs older than this
}

func (o Options) withDefaults() Options {
	if o.GraceInterval <= 0 {
		o.GraceInterval = 2 * time.Second
	}
	if o.StopWait <= 0 {
		o.StopWait = 10 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 200 * time.Millisecond
	}
	if o.KillWait <= 0 {
		o.KillWait = 2 * time.Second
	}
	if o.RestartPause <= 0 {
		o.RestartPause = 2 * time.Second
	}
	if o.LogRetention <= 0 {
		o.LogRetention = 7 * 24 * time.Hour
	}
	return o
}

// Config assembles a Supervisor.
type Config struct {
	Registry *worker.Registry
	Root     string // base for relative worker workdirs, usually the project root
	PIDDir   string
	LogDir   string
	Options  Options
	Env      *env.Env     // nil means OS environment only
	Sink     history.Sink // nil disables history
	Logger   *slog.Logger // nil falls back to slog.Default
}

// Supervisor drives the lifecycle of the registered workers.
type Supervisor struct {
	reg    *worker.Registry
	root   string
	pidDir string
	logDir string
	opts   Options
	env    *env.Env
	sink   history.Sink
	logger *slog.Logger
}

func New(cfg Config) (*Supervisor, error) {
	if cfg.Registry == nil {
		return nil, errors.New("supervisor: registry is required")
	}
	if cfg.PIDDir == "" || cfg.LogDir == "" {
		return nil, errors.New("supervisor: pid and log directories are required")
	}
	if err := os.MkdirAll(cfg.PIDDir, 0o750); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.LogDir, 0o750); err != nil {
		return nil, err
	}
	s := &Supervisor{
		reg:    cfg.Registry,
		root:   cfg.Root,
		pidDir: cfg.PIDDir,
		logDir: cfg.LogDir,
		opts:   cfg.Options.withDefaults(),
		env:    cfg.Env,
		sink:   cfg.Sink,
		logger: cfg.Logger,
	}
	if s.env == nil {
		s.env = env.New()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Workers returns the registered worker names in order.
func (s *Supervisor) Workers() []string { return s.reg.Names() }

// Start launches name as a detached process with combined output in a fresh
// timestamped log file. A process that dies within the grace interval is a
// launch failure and leaves no pid record behind.
func (s *Supervisor) Start(ctx context.Context, name string) (Status, error) {
	spec, ok := s.reg.Lookup(name)
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrUnknownWorker, name)
	}
	pidPath := s.pidPath(name)
	if rec, err := ReadRecord(pidPath); err == nil {
		if s.alive(rec) {
			return Status{}, fmt.Errorf("%w: %s (pid %d)", ErrAlreadyRunning, name, rec.PID)
		}
		s.purgeStale(ctx, name, rec)
	}

	logPath := filepath.Join(s.logDir, fmt.Sprintf("%s_%s.log", name, time.Now().Format(logStampFormat)))
	logf, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) // #nosec G302 G304
	if err != nil {
		return Status{}, fmt.Errorf("%w: %s: %w", ErrLaunchFailed, name, err)
	}

	cmd := buildCommand(spec.Command)
	cmd.Dir = s.workDir(spec)
	cmd.Env = s.env.Merge(spec.Env)
	cmd.Stdout = logf
	cmd.Stderr = logf
	applySysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		_ = logf.Close()
		_ = os.Remove(logPath)
		metrics.IncLaunchFailure(name)
		return Status{}, fmt.Errorf("%w: %s: %w", ErrLaunchFailed, name, err)
	}
	_ = logf.Close() // the child holds its own descriptor

	pid := cmd.Process.Pid
	started := time.Now()
	rec := Record{PID: pid, StartUnix: detector.ProcStartUnix(pid), LogPath: logPath, StartedAt: started}
	if err := WriteRecord(pidPath, rec); err != nil {
		// An untracked worker is worse than no worker.
		signalKill(pid)
		_ = cmd.Wait()
		return Status{}, fmt.Errorf("write pid file for %s: %w", name, err)
	}

	// Reap in the background; in serve mode this also prevents zombies.
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case werr := <-done:
		_ = os.Remove(pidPath)
		metrics.IncLaunchFailure(name)
		s.logger.Error("worker exited during grace interval", "name", name, "pid", pid, "error", werr)
		if werr != nil {
			return Status{}, fmt.Errorf("%w: %s exited during grace interval: %w", ErrLaunchFailed, name, werr)
		}
		return Status{}, fmt.Errorf("%w: %s exited during grace interval", ErrLaunchFailed, name)
	case <-time.After(s.opts.GraceInterval):
	}

	metrics.IncStart(name)
	s.record(ctx, history.Event{Type: history.EventStart, OccurredAt: started, Worker: name, PID: pid, LogPath: logPath})
	s.logger.Info("worker started", "name", name, "pid", pid, "log", logPath)
	return Status{Name: name, Running: true, PID: pid, StartedAt: started, LatestLog: logPath, State: StateRunning}, nil
}

// Stop terminates name: SIGTERM to the process group, a bounded polling
// window, then SIGKILL and a brief final wait.
func (s *Supervisor) Stop(ctx context.Context, name string) error {
	if _, ok := s.reg.Lookup(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWorker, name)
	}
	pidPath := s.pidPath(name)
	rec, err := ReadRecord(pidPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotRunning, name)
		}
		return fmt.Errorf("read pid file for %s: %w", name, err)
	}
	if !s.alive(rec) {
		s.purgeStale(ctx, name, rec)
		return fmt.Errorf("%w: %s", ErrNotRunning, name)
	}

	s.logger.Info("stopping worker", "name", name, "pid", rec.PID)
	signalTerm(rec.PID)
	if !s.waitGone(rec, s.opts.StopWait) {
		s.logger.Warn("worker ignored SIGTERM, escalating", "name", name, "pid", rec.PID)
		signalKill(rec.PID)
		if !s.waitGone(rec, s.opts.KillWait) {
			return fmt.Errorf("%w: %s (pid %d survived SIGKILL)", ErrStopFailed, name, rec.PID)
		}
	}

	_ = os.Remove(pidPath)
	metrics.IncStop(name)
	s.record(ctx, history.Event{Type: history.EventStop, OccurredAt: time.Now(), Worker: name, PID: rec.PID, LogPath: rec.LogPath})
	s.logger.Info("worker stopped", "name", name, "pid", rec.PID)
	return nil
}

// Restart is a best-effort stop (NotRunning is fine) followed by a brief
// pause and a start.
func (s *Supervisor) Restart(ctx context.Context, name string) (Status, error) {
	if err := s.Stop(ctx, name); err != nil && !errors.Is(err, ErrNotRunning) {
		return Status{}, err
	}
	time.Sleep(s.opts.RestartPause)
	return s.Start(ctx, name)
}

// Status reports the state of one worker. A recorded pid that no longer
// denotes a live process is purged as a side effect.
func (s *Supervisor) Status(ctx context.Context, name string) (Status, error) {
	if _, ok := s.reg.Lookup(name); !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrUnknownWorker, name)
	}
	st := Status{Name: name, State: StateStopped}
	st.LatestLog = s.latestLog(name)
	rec, err := ReadRecord(s.pidPath(name))
	if err != nil {
		return st, nil
	}
	if !s.alive(rec) {
		s.purgeStale(ctx, name, rec)
		return st, nil
	}
	st.Running = true
	st.PID = rec.PID
	st.StartedAt = rec.StartedAt
	st.State = StateRunning
	if rec.LogPath != "" {
		st.LatestLog = rec.LogPath
	}
	return st, nil
}

// StatusAll reports every registered worker in registry order.
func (s *Supervisor) StatusAll(ctx context.Context) []Status {
	names := s.reg.Names()
	out := make([]Status, 0, len(names))
	for _, n := range names {
		st, _ := s.Status(ctx, n)
		out = append(out, st)
	}
	return out
}

// CleanResult summarizes what Clean removed.
type CleanResult struct {
	RemovedLogs   int      `json:"removed_logs"`
	PurgedRecords []string `json:"purged_records,omitempty"`
}

// Clean deletes log files older than the retention window and purges any
// pid record whose process is gone.
func (s *Supervisor) Clean(ctx context.Context) (CleanResult, error) {
	var res CleanResult
	cutoff := time.Now().Add(-s.opts.LogRetention)
	entries, err := os.ReadDir(s.logDir)
	if err != nil && !os.IsNotExist(err) {
		return res, err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.logDir, e.Name())); err == nil {
			res.RemovedLogs++
		}
	}
	metrics.AddLogsRemoved(res.RemovedLogs)

	pids, err := os.ReadDir(s.pidDir)
	if err != nil && !os.IsNotExist(err) {
		return res, err
	}
	for _, e := range pids {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pid") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".pid")
		rec, err := ReadRecord(filepath.Join(s.pidDir, e.Name()))
		if err != nil {
			// Unreadable records are stale by definition.
			_ = os.Remove(filepath.Join(s.pidDir, e.Name()))
			res.PurgedRecords = append(res.PurgedRecords, name)
			continue
		}
		if s.alive(rec) {
			continue
		}
		s.purgeStale(ctx, name, rec)
		res.PurgedRecords = append(res.PurgedRecords, name)
	}
	s.logger.Info("clean finished", "removed_logs", res.RemovedLogs, "purged_records", len(res.PurgedRecords))
	return res, nil
}

// Logs returns the newest log file for name and its last n lines.
func (s *Supervisor) Logs(name string, n int) (string, []string, error) {
	if _, ok := s.reg.Lookup(name); !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownWorker, name)
	}
	path := s.latestLog(name)
	if path == "" {
		return "", nil, fmt.Errorf("no log files for %s", name)
	}
	lines, err := tailLines(path, n)
	if err != nil {
		return path, nil, err
	}
	return path, lines, nil
}

func (s *Supervisor) pidPath(name string) string {
	return filepath.Join(s.pidDir, name+".pid")
}

func (s *Supervisor) workDir(spec worker.Spec) string {
	if spec.WorkDir == "" {
		return s.root
	}
	if filepath.IsAbs(spec.WorkDir) {
		return spec.WorkDir
	}
	return filepath.Join(s.root, spec.WorkDir)
}

func (s *Supervisor) alive(rec Record) bool {
	ok, _ := detector.PIDDetector{PID: rec.PID, StartUnix: rec.StartUnix}.Alive()
	return ok
}

func (s *Supervisor) waitGone(rec Record, window time.Duration) bool {
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		if !s.alive(rec) {
			return true
		}
		time.Sleep(s.opts.PollInterval)
	}
	return !s.alive(rec)
}

func (s *Supervisor) purgeStale(ctx context.Context, name string, rec Record) {
	_ = os.Remove(s.pidPath(name))
	metrics.IncStalePurged()
	s.record(ctx, history.Event{Type: history.EventPurge, OccurredAt: time.Now(), Worker: name, PID: rec.PID, LogPath: rec.LogPath})
	s.logger.Debug("purged stale pid record", "name", name, "pid", rec.PID)
}

func (s *Supervisor) record(ctx context.Context, e history.Event) {
	if s.sink == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.sink.Send(cctx, e); err != nil {
		s.logger.Warn("history sink send failed", "event", string(e.Type), "worker", e.Worker, "error", err)
	}
}

// latestLog picks the newest "{name}_{timestamp}.log" in the log directory
// by modification time. The remainder after the name must be exactly the
// launch timestamp, otherwise worker "a" would match worker "a_b"'s logs
// (names may contain underscores).
func (s *Supervisor) latestLog(name string) string {
	entries, err := os.ReadDir(s.logDir)
	if err != nil {
		return ""
	}
	var best string
	var bestMod time.Time
	prefix := name + "_"
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		rest, ok := strings.CutPrefix(e.Name(), prefix)
		if !ok {
			continue
		}
		stamp, ok := strings.CutSuffix(rest, ".log")
		if !ok {
			continue
		}
		if _, err := time.Parse(logStampFormat, stamp); err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestMod) {
			best = filepath.Join(s.logDir, e.Name())
			bestMod = info.ModTime()
		}
	}
	return best
}

// buildCommand avoids a shell unless metacharacters require one.
func buildCommand(cmdStr string) *exec.Cmd {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		// still create a command that will fail when started
		return exec.Command("/bin/true")
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204
	return exec.Command(parts[0], parts[1:]...)
}

// tailLines returns the last n lines of the file at path.
func tailLines(path string, n int) ([]string, error) {
	if n <= 0 {
		n = 50
	}
	b, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

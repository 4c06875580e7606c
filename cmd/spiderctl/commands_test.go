package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fuliji/spiderctl/internal/config"
	"github.com/fuliji/spiderctl/internal/supervisor"
)

const testConfig = `
grace_interval = "150ms"
stop_wait = "2s"
poll_interval = "20ms"
kill_wait = "1s"
restart_pause = "50ms"

[[workers]]
name = "sleeper"
command = "sleep 5"

[[workers]]
name = "napper"
command = "sleep 5"
`

// newProject creates a project directory with a config file and chdirs into
// it so the default --config resolution finds it.
func newProject(t *testing.T) (string, command) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, config.DefaultFile), []byte(testConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Chdir(dir)
	return dir, command{flags: &GlobalFlags{ConfigPath: config.DefaultFile}}
}

func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	runErr := fn()
	os.Stdout = old
	_ = w.Close()
	out, _ := io.ReadAll(r)
	_ = r.Close()
	return string(out), runErr
}

func TestWrongDirectoryAborts(t *testing.T) {
	t.Chdir(t.TempDir())
	c := command{flags: &GlobalFlags{ConfigPath: config.DefaultFile}}
	if err := c.Status(""); !errors.Is(err, config.ErrWrongDirectory) {
		t.Fatalf("err=%v, want ErrWrongDirectory", err)
	}
	// no side effects outside a project root
	if _, err := os.Stat("pids"); !os.IsNotExist(err) {
		t.Fatal("pids directory created outside a project")
	}
}

func TestStartStatusStopFlow(t *testing.T) {
	dir, c := newProject(t)

	if _, err := captureOutput(t, func() error { return c.Start("sleeper") }); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "pids", "sleeper.pid")); err != nil {
		t.Fatalf("pid file missing: %v", err)
	}

	out, err := captureOutput(t, func() error { return c.Status("sleeper") })
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, labelRunning) {
		t.Fatalf("status output %q missing %q", out, labelRunning)
	}

	if _, err := captureOutput(t, func() error { return c.Stop("sleeper") }); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "pids", "sleeper.pid")); !os.IsNotExist(err) {
		t.Fatal("pid file survived stop")
	}

	out, err = captureOutput(t, func() error { return c.Status("sleeper") })
	if err != nil {
		t.Fatalf("status after stop: %v", err)
	}
	if !strings.Contains(out, labelStopped) {
		t.Fatalf("status output %q missing %q", out, labelStopped)
	}
}

func TestStartUnknownWorker(t *testing.T) {
	_, c := newProject(t)
	_, err := captureOutput(t, func() error { return c.Start("nope") })
	if !errors.Is(err, supervisor.ErrUnknownWorker) {
		t.Fatalf("err=%v, want ErrUnknownWorker", err)
	}
}

func TestStartAllStopAll(t *testing.T) {
	dir, c := newProject(t)

	out, err := captureOutput(t, c.StartAll)
	if err != nil {
		t.Fatalf("start-all: %v, out=%s", err, out)
	}
	for _, name := range []string{"sleeper", "napper"} {
		if _, err := os.Stat(filepath.Join(dir, "pids", name+".pid")); err != nil {
			t.Fatalf("pid file for %s missing: %v", name, err)
		}
	}

	// second start-all tolerates already-running workers
	out, err = captureOutput(t, c.StartAll)
	if err != nil {
		t.Fatalf("repeated start-all: %v, out=%s", err, out)
	}
	if !strings.Contains(out, "already running") {
		t.Fatalf("out=%q, want already-running note", out)
	}

	if out, err = captureOutput(t, c.StopAll); err != nil {
		t.Fatalf("stop-all: %v, out=%s", err, out)
	}

	// stop-all on a stopped fleet is a no-op
	out, err = captureOutput(t, c.StopAll)
	if err != nil {
		t.Fatalf("repeated stop-all: %v, out=%s", err, out)
	}
	if !strings.Contains(out, "not running") {
		t.Fatalf("out=%q, want not-running note", out)
	}
}

func TestListPrintsRegistry(t *testing.T) {
	_, c := newProject(t)
	out, err := captureOutput(t, c.List)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "sleeper") || !strings.Contains(out, "sleep 5") {
		t.Fatalf("unexpected list output: %q", out)
	}
}

func TestCleanOnFreshProject(t *testing.T) {
	_, c := newProject(t)
	out, err := captureOutput(t, c.Clean)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if !strings.Contains(out, "0 stale pid record(s)") {
		t.Fatalf("unexpected clean output: %q", out)
	}
}

func TestMissingArgumentIsUsageError(t *testing.T) {
	_, _ = newProject(t)
	for _, args := range [][]string{{"start"}, {"stop"}, {"restart"}, {"logs"}} {
		root := buildRoot()
		root.SetArgs(args)
		root.SetOut(io.Discard)
		root.SetErr(io.Discard)
		if err := root.Execute(); err == nil {
			t.Fatalf("args %v: expected usage error", args)
		}
	}
}

func TestHelpSucceeds(t *testing.T) {
	root := buildRoot()
	root.SetArgs([]string{"--help"})
	var sb strings.Builder
	root.SetOut(&sb)
	if err := root.Execute(); err != nil {
		t.Fatalf("help: %v", err)
	}
	if !strings.Contains(sb.String(), "spiderctl") {
		t.Fatalf("unexpected help output: %s", sb.String())
	}
}

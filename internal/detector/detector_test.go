package detector

import (
	"os"
	"os/exec"
	"runtime"
	"testing"
	"time"
)

func requireUnix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
}

func TestPIDDetectorSelf(t *testing.T) {
	d := PIDDetector{PID: os.Getpid()}
	ok, err := d.Alive()
	if err != nil || !ok {
		t.Fatalf("expected own pid alive, got ok=%v err=%v", ok, err)
	}
}

func TestPIDDetectorInvalid(t *testing.T) {
	for _, pid := range []int{0, -1} {
		d := PIDDetector{PID: pid}
		if ok, _ := d.Alive(); ok {
			t.Fatalf("pid %d should not be alive", pid)
		}
	}
}

func TestPIDDetectorExitedChild(t *testing.T) {
	requireUnix(t)
	cmd := exec.Command("sh", "-c", "exit 0")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Wait()
	// Reaped child must not be reported alive.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		d := PIDDetector{PID: pid}
		if ok, _ := d.Alive(); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("exited child %d still reported alive", pid)
}

func TestStartUnixMismatchTreatedAsDead(t *testing.T) {
	requireUnix(t)
	cmd := exec.Command("sleep", "2")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = cmd.Process.Kill(); _ = cmd.Wait() }()

	pid := cmd.Process.Pid
	start := ProcStartUnix(pid)
	if start == 0 {
		t.Skip("process start time unavailable on this platform")
	}
	ok, _ := PIDDetector{PID: pid, StartUnix: start}.Alive()
	if !ok {
		t.Fatalf("detector with matching start time should report alive")
	}
	// A start time far in the past means the pid belongs to someone else.
	ok, _ = PIDDetector{PID: pid, StartUnix: start - 10000}.Alive()
	if ok {
		t.Fatalf("detector with mismatched start time should report dead")
	}
}

func TestProcStartUnixSelf(t *testing.T) {
	start := ProcStartUnix(os.Getpid())
	if start == 0 {
		t.Skip("start time unavailable")
	}
	now := time.Now().Unix()
	if start > now || start < now-3600*24*365 {
		t.Fatalf("implausible start time %d (now %d)", start, now)
	}
}

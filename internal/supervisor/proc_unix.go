//go:build !windows

package supervisor

import (
	"os/exec"
	"syscall"
)

// applySysProcAttr puts the worker in a new session: it survives this
// process and its pgid equals its pid, so signals reach the whole worker
// tree.
func applySysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

func signalTerm(pid int) { signalGroup(pid, syscall.SIGTERM) }
func signalKill(pid int) { signalGroup(pid, syscall.SIGKILL) }

// signalGroup targets the process group; the worker is a session leader so
// its pgid equals its pid. Falls back to the single pid when the group is
// gone.
func signalGroup(pid int, sig syscall.Signal) {
	if err := syscall.Kill(-pid, sig); err != nil {
		_ = syscall.Kill(pid, sig)
	}
}

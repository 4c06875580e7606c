//go:build windows

package supervisor

import (
	"os"
	"os/exec"
)

func applySysProcAttr(cmd *exec.Cmd) {}

// Windows has neither process groups nor SIGTERM; both escalation steps are
// a hard kill of the single process.
func signalTerm(pid int) { signalKill(pid) }

func signalKill(pid int) {
	if p, err := os.FindProcess(pid); err == nil {
		_ = p.Kill()
	}
}

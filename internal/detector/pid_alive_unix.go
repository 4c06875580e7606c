//go:build !windows

package detector

import (
	"errors"
	"syscall"
)

// pidAlive reports whether a process with the given pid exists. EPERM still
// means the pid is taken, just owned by another user.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

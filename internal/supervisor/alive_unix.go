//go:build !windows

package supervisor

import (
	"os"
	"syscall"
)

// Alive reports whether pid names a running process. Signal 0 performs
// the permission and existence checks without delivering a signal.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}

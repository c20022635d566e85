//go:build windows

package supervisor

import "os"

// Alive reports whether pid names a running process. On Windows
// FindProcess opens a handle and fails for processes that are gone.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	p.Release()
	return true
}

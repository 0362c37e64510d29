//go:build !windows

package lock

import (
	"fmt"
	"syscall"
)

// Holder returns the PID in the lock file and whether that process is alive.
func (l *Lock) Holder() (int, bool) {
	pid, err := l.Read()
	if err != nil {
		return 0, false
	}
	// Signal 0 tests if the process exists without sending a signal.
	err = syscall.Kill(pid, 0)
	return pid, err == nil || err == syscall.EPERM
}

// Signal sends sig to the lock holder, e.g. to stop a running server.
func (l *Lock) Signal(sig syscall.Signal) error {
	pid, err := l.Read()
	if err != nil {
		return fmt.Errorf("read lock file: %w", err)
	}
	return syscall.Kill(pid, sig)
}

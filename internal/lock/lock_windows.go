//go:build windows

package lock

import (
	"fmt"
	"os"
	"syscall"
)

// Holder returns the PID in the lock file and whether that process is alive.
// On Windows, uses os.FindProcess + a zero signal equivalent.
func (l *Lock) Holder() (int, bool) {
	pid, err := l.Read()
	if err != nil {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}
	err = proc.Signal(syscall.Signal(0))
	return pid, err == nil
}

// Signal sends sig to the lock holder. Only os.Kill is reliable on Windows.
func (l *Lock) Signal(sig syscall.Signal) error {
	pid, err := l.Read()
	if err != nil {
		return fmt.Errorf("read lock file: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	return proc.Signal(sig)
}

// Package lock keeps two processes from driving the same owner's workout at
// once. The lock is a PID file: a holder that died without releasing it is
// detected and its lock taken over.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrHeld is returned when a live process other than this one holds the lock.
var ErrHeld = errors.New("workout is being driven by another process")

// Lock is a per-owner PID file.
type Lock struct {
	Path string
}

// New returns the lock for owner under dir.
func New(dir, owner string) *Lock {
	return &Lock{Path: filepath.Join(dir, "lift-"+sanitize(owner)+".lock")}
}

func sanitize(owner string) string {
	if owner == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, owner)
}

// Acquire takes the lock for the current process. Re-acquiring a lock this
// process already holds succeeds. A lock left by a dead process is replaced.
// The PID is written to a temporary file that is linked into place, so the
// lock file never appears without its content.
func (l *Lock) Acquire() error {
	dir := filepath.Dir(l.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(l.Path)+".*")
	if err != nil {
		return fmt.Errorf("create lock: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	_, werr := tmp.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("write lock: %w", werr)
	}

	for attempt := 0; attempt < 2; attempt++ {
		err := os.Link(tmp.Name(), l.Path)
		if err == nil {
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("create lock: %w", err)
		}

		pid, running := l.Holder()
		if pid == os.Getpid() {
			return nil
		}
		if running {
			return fmt.Errorf("%w (pid %d)", ErrHeld, pid)
		}
		// Stale: the holder is gone or the file is unreadable.
		if err := os.Remove(l.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale lock: %w", err)
		}
	}
	return fmt.Errorf("%w: lost race for %s", ErrHeld, l.Path)
}

// Release removes the lock if this process holds it.
func (l *Lock) Release() error {
	pid, err := l.Read()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err == nil && pid != os.Getpid() {
		return nil
	}
	if err := os.Remove(l.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Read reads the holder's PID from the file.
func (l *Lock) Read() (int, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid lock file content: %w", err)
	}
	return pid, nil
}

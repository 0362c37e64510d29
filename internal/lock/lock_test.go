package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePID(t *testing.T, l *Lock, pid int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(l.Path), 0o755))
	require.NoError(t, os.WriteFile(l.Path, []byte(strconv.Itoa(pid)+"\n"), 0o644))
}

func TestNew_Path(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, "lift-alice.lock"), New(dir, "alice").Path)
	assert.Equal(t, filepath.Join(dir, "lift-default.lock"), New(dir, "").Path)
	assert.Equal(t, filepath.Join(dir, "lift-a_b_c.lock"), New(dir, "a/b c").Path)
}

func TestAcquireAndRelease(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "state"), "alice")

	require.NoError(t, l.Acquire())
	pid, err := l.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, l.Acquire(), "re-acquiring our own lock succeeds")

	require.NoError(t, l.Release())
	_, err = os.Stat(l.Path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, l.Release(), "releasing twice is a no-op")
}

func TestAcquire_HeldByLiveProcess(t *testing.T) {
	l := New(t.TempDir(), "alice")
	// PID 1 is always alive.
	writePID(t, l, 1)

	err := l.Acquire()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHeld)
	assert.Contains(t, err.Error(), "pid 1")

	require.NoError(t, l.Release())
	pid, err := l.Read()
	require.NoError(t, err)
	assert.Equal(t, 1, pid, "someone else's lock is left alone")
}

func TestAcquire_TakesOverStaleLock(t *testing.T) {
	l := New(t.TempDir(), "alice")
	// Use a very high PID that almost certainly doesn't exist.
	writePID(t, l, 999999)

	require.NoError(t, l.Acquire())
	pid, err := l.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquire_TakesOverCorruptLock(t *testing.T) {
	l := New(t.TempDir(), "alice")
	require.NoError(t, os.WriteFile(l.Path, []byte("not-a-number\n"), 0o644))

	require.NoError(t, l.Acquire())
	pid, err := l.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquire_FileAlwaysHasPID(t *testing.T) {
	l := New(t.TempDir(), "alice")

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = l.Acquire()
			_ = l.Release()
		}
		close(done)
	}()

	for {
		select {
		case <-done:
			wg.Wait()
			entries, err := os.ReadDir(filepath.Dir(l.Path))
			require.NoError(t, err)
			assert.Empty(t, entries, "no temporary files are left behind")
			return
		default:
		}
		pid, err := l.Read()
		if err != nil {
			require.True(t, errors.Is(err, os.ErrNotExist), "lock file read while being created: %v", err)
			continue
		}
		require.Equal(t, os.Getpid(), pid)
	}
}

func TestRead_InvalidContent(t *testing.T) {
	l := New(t.TempDir(), "alice")
	require.NoError(t, os.WriteFile(l.Path, []byte("garbage"), 0o644))

	_, err := l.Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid lock file content")
}

func TestHolder(t *testing.T) {
	l := New(t.TempDir(), "alice")

	pid, running := l.Holder()
	assert.Equal(t, 0, pid)
	assert.False(t, running)

	require.NoError(t, l.Acquire())
	pid, running = l.Holder()
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, running)
}

func TestSignal(t *testing.T) {
	l := New(t.TempDir(), "alice")

	err := l.Signal(syscall.Signal(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read lock file")

	require.NoError(t, l.Acquire())
	// Signal 0 just checks if process exists, doesn't actually send a signal.
	assert.NoError(t, l.Signal(syscall.Signal(0)))
}

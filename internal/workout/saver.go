package workout

import (
	"context"
	"sync"
	"time"

	"github.com/joescharf/lift/internal/models"
)

type snapshot struct {
	version uint64
	w       *models.WorkoutSession
}

// saver writes session snapshots in the background. Pending snapshots are
// coalesced so only the newest is written, and a snapshot older than one
// already written is never written after it.
type saver struct {
	port    Persister
	timeout time.Duration
	onErr   func(error)

	mu      sync.Mutex
	pending *snapshot
	running bool
	idle    chan struct{}
	lastErr error

	writeMu sync.Mutex
	written uint64
}

func newSaver(port Persister, timeout time.Duration, onErr func(error)) *saver {
	idle := make(chan struct{})
	close(idle)
	return &saver{port: port, timeout: timeout, onErr: onErr, idle: idle}
}

func (sv *saver) enqueue(version uint64, w *models.WorkoutSession) {
	if sv.port == nil {
		return
	}
	sv.mu.Lock()
	defer sv.mu.Unlock()
	sv.pending = &snapshot{version: version, w: w}
	if !sv.running {
		sv.running = true
		sv.idle = make(chan struct{})
		go sv.loop(sv.idle)
	}
}

func (sv *saver) loop(idle chan struct{}) {
	for {
		sv.mu.Lock()
		p := sv.pending
		sv.pending = nil
		if p == nil {
			sv.running = false
			close(idle)
			sv.mu.Unlock()
			return
		}
		sv.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), sv.timeout)
		err := sv.write(ctx, p.version, p.w)
		cancel()
		if err != nil && sv.onErr != nil {
			sv.onErr(err)
		}
	}
}

func (sv *saver) write(ctx context.Context, version uint64, w *models.WorkoutSession) error {
	if sv.port == nil {
		return nil
	}
	sv.writeMu.Lock()
	defer sv.writeMu.Unlock()
	if version < sv.written {
		return nil
	}

	if err := sv.port.SaveWorkout(ctx, w); err != nil {
		se := &StorageError{Op: "save workout " + w.ID, Err: err}
		sv.setErr(se)
		return se
	}
	sv.written = version
	sv.setErr(nil)
	return nil
}

// wait blocks until queued snapshots are written and returns the outcome of
// the most recent write.
func (sv *saver) wait(ctx context.Context) error {
	sv.mu.Lock()
	idle := sv.idle
	sv.mu.Unlock()

	select {
	case <-idle:
	case <-ctx.Done():
		return ctx.Err()
	}
	return sv.err()
}

func (sv *saver) setErr(err error) {
	sv.mu.Lock()
	sv.lastErr = err
	sv.mu.Unlock()
}

func (sv *saver) err() error {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return sv.lastErr
}

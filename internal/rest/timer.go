// Package rest implements the single-shot rest countdown used between sets.
package rest

import (
	"fmt"
	"sync"
	"time"

	"github.com/joescharf/lift/internal/clock"
)

// TickFunc receives the whole seconds remaining once per elapsed second.
type TickFunc func(run uint64, remaining int)

// DoneFunc is called exactly once when a run reaches zero. run is the id
// returned by Start so callers can discard completions of superseded runs.
type DoneFunc func(run uint64)

// Timer is a single-shot countdown. Remaining time is always derived from
// the clock as start + duration - now, never from counted ticks, so a process
// suspended past the deadline completes on its first tick after resuming.
type Timer struct {
	clock  clock.Clock
	onTick TickFunc
	onDone DoneFunc

	mu        sync.Mutex
	run       uint64
	active    bool
	startedAt time.Time
	duration  time.Duration
	stop      chan struct{}
}

// New creates an idle timer. Either callback may be nil.
func New(c clock.Clock, onTick TickFunc, onDone DoneFunc) *Timer {
	return &Timer{clock: c, onTick: onTick, onDone: onDone}
}

// Start arms the timer for seconds, cancelling any run in progress.
func (t *Timer) Start(seconds int) (uint64, error) {
	return t.StartAt(t.clock.Now(), seconds)
}

// StartAt arms the timer as if it had been started at startedAt. Resumed
// sessions use it to continue a rest interval begun by an earlier process.
func (t *Timer) StartAt(startedAt time.Time, seconds int) (uint64, error) {
	if seconds <= 0 {
		return 0, fmt.Errorf("rest duration must be positive, got %d", seconds)
	}

	t.mu.Lock()
	t.cancelLocked()
	t.run++
	run := t.run
	t.active = true
	t.startedAt = startedAt
	t.duration = time.Duration(seconds) * time.Second
	stop := make(chan struct{})
	t.stop = stop
	ticker := t.clock.NewTicker(time.Second)
	t.mu.Unlock()

	go t.loop(run, stop, ticker)
	return run, nil
}

// Cancel stops the current run. Once Cancel returns no completion for that
// run will be started. Cancelling an idle timer is a no-op.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

func (t *Timer) cancelLocked() {
	if !t.active {
		return
	}
	t.active = false
	close(t.stop)
}

// Active reports whether a run is counting down.
func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Remaining returns the whole seconds left, rounded up, or 0 when idle.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return 0
	}
	return ceilSeconds(t.remainingLocked())
}

// Check recomputes the remaining time and completes the run immediately if
// it has already elapsed. Call it when the host process resumes.
func (t *Timer) Check() bool {
	t.mu.Lock()
	if !t.active || t.remainingLocked() > 0 {
		t.mu.Unlock()
		return false
	}
	run := t.run
	t.mu.Unlock()
	return t.complete(run)
}

func (t *Timer) remainingLocked() time.Duration {
	return t.startedAt.Add(t.duration).Sub(t.clock.Now())
}

func (t *Timer) loop(run uint64, stop <-chan struct{}, ticker clock.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			t.mu.Lock()
			if !t.active || t.run != run {
				t.mu.Unlock()
				return
			}
			rem := t.remainingLocked()
			t.mu.Unlock()

			if rem <= 0 {
				t.complete(run)
				return
			}
			if t.onTick != nil {
				t.onTick(run, ceilSeconds(rem))
			}
		}
	}
}

func (t *Timer) complete(run uint64) bool {
	t.mu.Lock()
	if !t.active || t.run != run {
		t.mu.Unlock()
		return false
	}
	t.active = false
	close(t.stop)
	t.mu.Unlock()

	if t.onDone != nil {
		t.onDone(run)
	}
	return true
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

package rest

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/lift/internal/clock"
)

type recorder struct {
	ticks chan int
	done  chan uint64
	count atomic.Int32
}

func newRecorder() *recorder {
	return &recorder{ticks: make(chan int, 64), done: make(chan uint64, 8)}
}

func (r *recorder) tick(_ uint64, rem int) { r.ticks <- rem }
func (r *recorder) finish(run uint64) {
	r.count.Add(1)
	r.done <- run
}

func newTestTimer(t *testing.T) (*Timer, *clock.Fake, *recorder) {
	t.Helper()
	fc := clock.NewFake(time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC))
	rec := newRecorder()
	return New(fc, rec.tick, rec.finish), fc, rec
}

func waitTick(t *testing.T, rec *recorder) int {
	t.Helper()
	select {
	case v := <-rec.ticks:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
		return 0
	}
}

func waitDone(t *testing.T, rec *recorder) uint64 {
	t.Helper()
	select {
	case run := <-rec.done:
		return run
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
		return 0
	}
}

func assertNoDone(t *testing.T, rec *recorder) {
	t.Helper()
	select {
	case run := <-rec.done:
		t.Fatalf("unexpected completion of run %d", run)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimer_TicksThenCompletes(t *testing.T) {
	tm, fc, rec := newTestTimer(t)

	run, err := tm.Start(3)
	require.NoError(t, err)
	assert.True(t, tm.Active())
	assert.Equal(t, 3, tm.Remaining())

	fc.Advance(time.Second)
	assert.Equal(t, 2, waitTick(t, rec))

	fc.Advance(time.Second)
	assert.Equal(t, 1, waitTick(t, rec))

	fc.Advance(time.Second)
	assert.Equal(t, run, waitDone(t, rec))
	assert.False(t, tm.Active())
	assert.Equal(t, 0, tm.Remaining())
	assertNoDone(t, rec)
}

func TestTimer_ResumeAfterLongSuspension(t *testing.T) {
	tm, fc, rec := newTestTimer(t)

	_, err := tm.Start(30)
	require.NoError(t, err)

	// The process sleeps through the whole interval and then some.
	fc.Advance(45 * time.Second)

	waitDone(t, rec)
	assert.Equal(t, 0, tm.Remaining())
	assert.Len(t, rec.ticks, 0, "no countdown ticks are replayed after resuming")
}

func TestTimer_CheckCompletesElapsedRun(t *testing.T) {
	fc := clock.NewFake(time.Unix(1000, 0))
	rec := newRecorder()
	tm := New(fc, rec.tick, rec.finish)

	_, err := tm.StartAt(fc.Now().Add(-time.Minute), 30)
	require.NoError(t, err)

	assert.Equal(t, 0, tm.Remaining())
	tm.Check()
	waitDone(t, rec)
	assert.False(t, tm.Check(), "a finished run cannot complete twice")
	assert.Equal(t, int32(1), rec.count.Load())
}

func TestTimer_CheckBeforeDeadline(t *testing.T) {
	tm, _, rec := newTestTimer(t)
	_, err := tm.Start(10)
	require.NoError(t, err)

	assert.False(t, tm.Check())
	assert.True(t, tm.Active())
	assertNoDone(t, rec)
	tm.Cancel()
}

func TestTimer_CancelIsIdempotent(t *testing.T) {
	tm, fc, rec := newTestTimer(t)

	_, err := tm.Start(5)
	require.NoError(t, err)
	tm.Cancel()
	tm.Cancel()
	assert.False(t, tm.Active())

	fc.Advance(10 * time.Second)
	assertNoDone(t, rec)
	assert.Eventually(t, func() bool { return fc.Tickers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestTimer_CancelIdleTimer(t *testing.T) {
	tm, _, _ := newTestTimer(t)
	assert.NotPanics(t, tm.Cancel)
}

func TestTimer_RearmReplacesRun(t *testing.T) {
	tm, fc, rec := newTestTimer(t)

	first, err := tm.Start(5)
	require.NoError(t, err)
	second, err := tm.Start(10)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 10, tm.Remaining())

	fc.Advance(6 * time.Second)
	assert.Equal(t, 4, waitTick(t, rec))
	assertNoDone(t, rec)

	fc.Advance(4 * time.Second)
	assert.Equal(t, second, waitDone(t, rec))
	assertNoDone(t, rec)
	assert.Equal(t, int32(1), rec.count.Load())
}

func TestTimer_RejectsNonPositiveDuration(t *testing.T) {
	tm, _, _ := newTestTimer(t)
	_, err := tm.Start(0)
	require.Error(t, err)
	assert.False(t, tm.Active())
}

func TestCeilSeconds(t *testing.T) {
	assert.Equal(t, 0, ceilSeconds(-time.Second))
	assert.Equal(t, 0, ceilSeconds(0))
	assert.Equal(t, 1, ceilSeconds(time.Millisecond))
	assert.Equal(t, 1, ceilSeconds(time.Second))
	assert.Equal(t, 2, ceilSeconds(1500*time.Millisecond))
}

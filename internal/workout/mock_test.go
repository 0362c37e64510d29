package workout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joescharf/lift/internal/clock"
	"github.com/joescharf/lift/internal/models"
)

var errDiskFull = errors.New("disk full")

// memPersister is an in-memory Persister that can be told to fail.
type memPersister struct {
	mu       sync.Mutex
	workouts map[string]*models.WorkoutSession
	saves    int
	fail     error
	// hold, when set, blocks saves of ended workouts until it is closed.
	hold chan struct{}
}

func newMemPersister() *memPersister {
	return &memPersister{workouts: make(map[string]*models.WorkoutSession)}
}

func (p *memPersister) SaveWorkout(_ context.Context, w *models.WorkoutSession) error {
	p.mu.Lock()
	hold := p.hold
	p.mu.Unlock()
	if hold != nil && w.Status.Terminal() {
		<-hold
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.saves++
	p.workouts[w.ID] = w.Clone()
	return nil
}

func (p *memPersister) LoadActiveWorkout(_ context.Context, ownerID string) (*models.WorkoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return nil, p.fail
	}
	for _, w := range p.workouts {
		if w.OwnerID == ownerID && !w.Status.Terminal() {
			return w.Clone(), nil
		}
	}
	return nil, nil
}

func (p *memPersister) setFail(err error) {
	p.mu.Lock()
	p.fail = err
	p.mu.Unlock()
}

// holdEnded makes saves of ended workouts wait until the returned func runs.
func (p *memPersister) holdEnded() (release func()) {
	ch := make(chan struct{})
	p.mu.Lock()
	p.hold = ch
	p.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (p *memPersister) saveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

func (p *memPersister) get(id string) *models.WorkoutSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.workouts[id]; ok {
		return w.Clone()
	}
	return nil
}

// memCatalog serves fixed templates by routine id.
type memCatalog map[string]*models.Template

func (c memCatalog) FetchTemplate(_ context.Context, routineID string) (*models.Template, error) {
	t, ok := c[routineID]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

var testStart = time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

func floatPtr(f float64) *float64 { return &f }

// testTemplate is bench press (3 x 10 @ 100, 90s rest) followed by rows
// (2 x 8 @ 60, no rest).
func testTemplate() *models.Template {
	return &models.Template{
		RoutineID:   "push-pull",
		RoutineName: "Push Pull",
		Exercises: []models.TemplateExercise{
			{
				Exercise:    models.ExerciseTemplate{ID: "bench", Name: "Bench Press", Equipment: "barbell"},
				RestSeconds: 90,
				Sets: []models.PlannedSet{
					{Index: 0, TargetReps: 10, TargetWeight: floatPtr(100)},
					{Index: 1, TargetReps: 10, TargetWeight: floatPtr(100)},
					{Index: 2, TargetReps: 10, TargetWeight: floatPtr(100)},
				},
			},
			{
				Exercise: models.ExerciseTemplate{ID: "row", Name: "Cable Row"},
				Sets: []models.PlannedSet{
					{Index: 0, TargetReps: 8, TargetWeight: floatPtr(60)},
					{Index: 1, TargetReps: 8, TargetWeight: floatPtr(60)},
				},
			},
		},
	}
}

type fixture struct {
	clock *clock.Fake
	store *memPersister
	opts  Options
}

func newFixture() *fixture {
	f := &fixture{clock: clock.NewFake(testStart), store: newMemPersister()}
	n := 0
	f.opts = Options{
		Clock:     f.clock,
		Persister: f.store,
		NewID: func() string {
			n++
			return fmt.Sprintf("w%d", n)
		},
	}
	return f
}

func newTestSession(t *testing.T, f *fixture) *Session {
	t.Helper()
	s, err := New(testTemplate(), "alice", f.opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

// nextEvent waits for the next event on ch.
func nextEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "event stream closed")
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// waitStatus blocks until the session reaches want.
func waitStatus(t *testing.T, s *Session, want models.SessionStatus) {
	t.Helper()
	require.Eventually(t, func() bool { return s.Status() == want }, 2*time.Second, time.Millisecond)
}

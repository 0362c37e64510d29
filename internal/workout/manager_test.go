package workout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/lift/internal/models"
)

func newTestManager(f *fixture) *Manager {
	return NewManager(memCatalog{"push-pull": testTemplate()}, f.opts)
}

func TestManager_Start(t *testing.T) {
	f := newFixture()
	m := newTestManager(f)
	ctx := context.Background()
	defer m.Close(ctx)

	s, err := m.Start(ctx, "alice", "push-pull")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusActive, s.Status())

	saved := f.store.get(s.ID())
	require.NotNil(t, saved, "initial state is persisted")
	assert.Equal(t, "alice", saved.OwnerID)

	active, err := m.Active("alice")
	require.NoError(t, err)
	assert.Same(t, s, active)

	_, err = m.Start(ctx, "alice", "push-pull")
	assert.ErrorIs(t, err, ErrSessionActive)

	_, err = m.Active("bob")
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestManager_StartUnknownRoutine(t *testing.T) {
	f := newFixture()
	m := newTestManager(f)

	_, err := m.Start(context.Background(), "alice", "legs")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, f.store.saveCount())
}

func TestManager_StartBlockedByPersistedSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first := newTestManager(f)
	s, err := first.Start(ctx, "alice", "push-pull")
	require.NoError(t, err)
	s.Close()

	second := newTestManager(f)
	_, err = second.Start(ctx, "alice", "push-pull")
	assert.ErrorIs(t, err, ErrSessionActive)
}

func TestManager_StartAfterFinish(t *testing.T) {
	f := newFixture()
	m := newTestManager(f)
	ctx := context.Background()
	defer m.Close(ctx)

	s, err := m.Start(ctx, "alice", "push-pull")
	require.NoError(t, err)
	_, err = s.Finish()
	require.NoError(t, err)
	require.NoError(t, s.Flush(ctx))

	next, err := m.Start(ctx, "alice", "push-pull")
	require.NoError(t, err)
	assert.NotEqual(t, s.ID(), next.ID())
}

func TestManager_StartStorageFailure(t *testing.T) {
	f := newFixture()
	m := newTestManager(f)
	f.store.setFail(errDiskFull)

	_, err := m.Start(context.Background(), "alice", "push-pull")
	require.Error(t, err)
	assert.True(t, IsStorageError(err))
}

func TestManager_Resume(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first := newTestManager(f)
	s, err := first.Start(ctx, "alice", "push-pull")
	require.NoError(t, err)
	require.NoError(t, s.SkipSet(0, 0))
	require.NoError(t, first.Close(ctx))

	second := newTestManager(f)
	defer second.Close(ctx)
	resumed, err := second.Resume(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, s.ID(), resumed.ID())
	assert.Equal(t, models.SetStatusSkipped, resumed.State().Workout.Exercises[0].Sets[0].Status)
	assert.Equal(t, models.Cursor{Exercise: 0, Set: 1}, resumed.Cursor())

	again, err := second.Resume(ctx, "alice")
	require.NoError(t, err)
	assert.Same(t, resumed, again)

	_, err = second.Resume(ctx, "bob")
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestManager_ResumeWhileFinalSavePending(t *testing.T) {
	for _, end := range []struct {
		name string
		fn   func(s *Session) error
		want models.SessionStatus
	}{
		{name: "finish", fn: func(s *Session) error { _, err := s.Finish(); return err }, want: models.SessionStatusFinished},
		{name: "abandon", fn: func(s *Session) error { return s.Abandon() }, want: models.SessionStatusAbandoned},
	} {
		t.Run(end.name, func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()
			m := newTestManager(f)

			s, err := m.Start(ctx, "alice", "push-pull")
			require.NoError(t, err)
			defer s.Close()
			require.NoError(t, s.SkipSet(0, 0))
			release := f.store.holdEnded()
			defer release()
			require.NoError(t, end.fn(s))

			// The store still lists the workout as active.
			require.Equal(t, models.SessionStatusActive, f.store.get(s.ID()).Status)

			_, err = m.Resume(ctx, "alice")
			assert.ErrorIs(t, err, ErrNoActiveSession)
			w, err := m.Recover(ctx, "alice", time.Nanosecond)
			require.NoError(t, err)
			assert.Nil(t, w)
			_, err = m.Start(ctx, "alice", "push-pull")
			require.NoError(t, err, "a new workout can start once the last one ended")

			release()
			require.NoError(t, s.Flush(ctx))
			require.NoError(t, m.Close(ctx))
			assert.Equal(t, end.want, f.store.get(s.ID()).Status)
		})
	}
}

func TestManager_LatestReturnsFinishedSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	m := newTestManager(f)
	defer m.Close(ctx)

	s, err := m.Start(ctx, "alice", "push-pull")
	require.NoError(t, err)
	require.NoError(t, s.CompleteSet(0, 0, 10, 100))
	first, err := s.Finish()
	require.NoError(t, err)
	require.NoError(t, s.Flush(ctx))

	_, err = m.Resume(ctx, "alice")
	assert.ErrorIs(t, err, ErrNoActiveSession)

	latest, err := m.Latest(ctx, "alice")
	require.NoError(t, err)
	assert.Same(t, s, latest)
	again, err := latest.Finish()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	_, err = m.Latest(ctx, "bob")
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestManager_Recover(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first := newTestManager(f)
	s, err := first.Start(ctx, "alice", "push-pull")
	require.NoError(t, err)
	require.NoError(t, first.Close(ctx))

	m := newTestManager(f)
	f.clock.Advance(time.Hour)
	w, err := m.Recover(ctx, "alice", 4*time.Hour)
	require.NoError(t, err)
	assert.Nil(t, w, "fresh session is left alone")

	f.clock.Advance(4 * time.Hour)
	w, err = m.Recover(ctx, "alice", 4*time.Hour)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, s.ID(), w.ID)
	assert.Equal(t, models.SessionStatusAbandoned, w.Status)
	assert.Equal(t, models.SessionStatusAbandoned, f.store.get(s.ID()).Status)

	w, err = m.Recover(ctx, "alice", 4*time.Hour)
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestManager_CloseSavesLiveSessions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	m := newTestManager(f)

	s, err := m.Start(ctx, "alice", "push-pull")
	require.NoError(t, err)
	require.NoError(t, s.CompleteSet(0, 0, 10, 100))
	require.NoError(t, m.Close(ctx))

	saved := f.store.get(s.ID())
	assert.Equal(t, models.SessionStatusResting, saved.Status)
	assert.Equal(t, models.SetStatusCompleted, saved.Exercises[0].Sets[0].Status)

	_, err = m.Active("alice")
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

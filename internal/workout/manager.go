package workout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joescharf/lift/internal/models"
)

// Manager owns at most one live Session per owner and builds sessions from
// the catalog or from persisted state.
type Manager struct {
	catalog Catalog
	opts    Options
	log     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager. opts.Persister is used both for saving
// sessions and for resuming them.
func NewManager(catalog Catalog, opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		catalog:  catalog,
		opts:     opts,
		log:      opts.Logger.With("component", "manager"),
		sessions: make(map[string]*Session),
	}
}

// Start fetches the routine template and starts a new session for owner.
func (m *Manager) Start(ctx context.Context, owner, routineID string) (*Session, error) {
	if m.catalog == nil {
		return nil, fmt.Errorf("fetch routine %s: %w", routineID, ErrNotFound)
	}
	tmpl, err := m.catalog.FetchTemplate(ctx, routineID)
	if err != nil {
		return nil, fmt.Errorf("fetch routine %s: %w", routineID, err)
	}
	return m.StartTemplate(ctx, owner, tmpl)
}

// StartTemplate starts an ad-hoc session from tmpl. The initial state is
// persisted before the session is returned.
func (m *Manager) StartTemplate(ctx context.Context, owner string, tmpl *models.Template) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[owner]; ok && !s.Status().Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrSessionActive, s.ID())
	}
	existing, err := m.loadActive(ctx, owner)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrSessionActive, existing.ID)
	case !errors.Is(err, ErrNoActiveSession):
		return nil, err
	}

	s, err := New(tmpl, owner, m.opts)
	if err != nil {
		return nil, err
	}
	if err := s.Save(ctx); err != nil {
		s.Close()
		return nil, err
	}
	m.sessions[owner] = s
	return s, nil
}

// Active returns the owner's live in-memory session.
func (m *Manager) Active(owner string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[owner]
	if !ok || s.Status().Terminal() {
		return nil, ErrNoActiveSession
	}
	return s, nil
}

// Resume returns the owner's live session, rebuilding it from the store when
// this process does not hold it yet.
func (m *Manager) Resume(ctx context.Context, owner string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[owner]; ok && !s.Status().Terminal() {
		return s, nil
	}
	w, err := m.loadActive(ctx, owner)
	if err != nil {
		return nil, err
	}
	s, err := Restore(w, m.opts)
	if err != nil {
		return nil, err
	}
	m.sessions[owner] = s
	return s, nil
}

// Latest returns the session a finish request applies to: the owner's held
// session when it is live or finished, otherwise the resumed one. Finishing
// it again returns the frozen summary.
func (m *Manager) Latest(ctx context.Context, owner string) (*Session, error) {
	m.mu.Lock()
	held, ok := m.sessions[owner]
	m.mu.Unlock()
	if ok && held.Status() == models.SessionStatusFinished {
		return held, nil
	}
	return m.Resume(ctx, owner)
}

// Recover abandons a persisted session that has not been touched for
// staleAfter. It returns the abandoned record, or nil when the session is
// still fresh. Sessions held live by this manager are never recovered.
func (m *Manager) Recover(ctx context.Context, owner string, staleAfter time.Duration) (*models.WorkoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[owner]; ok && !s.Status().Terminal() {
		return nil, nil
	}
	w, err := m.loadActive(ctx, owner)
	if err != nil {
		if errors.Is(err, ErrNoActiveSession) {
			return nil, nil
		}
		return nil, err
	}

	now := m.opts.Clock.Now()
	idle := now.Sub(w.UpdatedAt)
	if idle < staleAfter {
		return nil, nil
	}
	w.Status = models.SessionStatusAbandoned
	w.EndedAt = &now
	w.RestStartedAt = nil
	w.RestDuration = 0
	w.UpdatedAt = now
	if err := m.opts.Persister.SaveWorkout(ctx, w); err != nil {
		return nil, &StorageError{Op: "save workout " + w.ID, Err: err}
	}
	m.log.Info("stale workout abandoned", "session", w.ID, "owner", owner, "idle", idle.String())
	return w, nil
}

// Close persists every live session, waits for background saves and stops
// the sessions. The first error encountered is returned.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for owner, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, owner)
	}
	m.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		err := s.Flush(ctx)
		if !s.Status().Terminal() {
			err = s.Save(ctx)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
		s.Close()
	}
	return firstErr
}

// loadActive reads the owner's unfinished workout from the store. While the
// final save of a held terminal session is pending, the store still lists it
// as active; that row is stale and never restored.
func (m *Manager) loadActive(ctx context.Context, owner string) (*models.WorkoutSession, error) {
	if m.opts.Persister == nil {
		return nil, ErrNoActiveSession
	}
	var endedID string
	if held, ok := m.sessions[owner]; ok && held.Status().Terminal() {
		endedID = held.ID()
	}
	w, err := m.opts.Persister.LoadActiveWorkout(ctx, owner)
	if err != nil {
		return nil, &StorageError{Op: "load active workout", Err: err}
	}
	if w == nil || w.ID == endedID {
		return nil, ErrNoActiveSession
	}
	return w, nil
}

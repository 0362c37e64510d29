package workout

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/lift/internal/clock"
	"github.com/joescharf/lift/internal/models"
	"github.com/joescharf/lift/internal/rest"
	"github.com/joescharf/lift/internal/stats"
)

// Options configures a Session. Zero values get sensible defaults.
type Options struct {
	Clock     clock.Clock
	Persister Persister
	Logger    *slog.Logger
	// Autosave persists after every set transition, not just at session
	// boundaries.
	Autosave    bool
	SaveTimeout time.Duration
	NewID       func() string
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.SaveTimeout <= 0 {
		o.SaveTimeout = 10 * time.Second
	}
	if o.NewID == nil {
		o.NewID = newULID
	}
	return o
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	Workout       *models.WorkoutSession `json:"workout"`
	Summary       models.Summary         `json:"summary"`
	RestRemaining int                    `json:"rest_remaining"`
}

// Session is the live state machine for one workout. Mutations are
// serialized through a single writer; a second concurrent mutation fails
// with ErrBusy. Reads never wait on the writer.
type Session struct {
	id    string
	clock clock.Clock
	log   *slog.Logger
	opts  Options

	writer sync.Mutex

	mu      sync.RWMutex
	w       *models.WorkoutSession
	final   *models.Summary
	restRun uint64
	version uint64

	timer *rest.Timer
	bus   *Bus
	saver *saver
}

// New materializes a session from t for ownerID. Each planned set becomes a
// pending set record and the cursor starts at the first set.
func New(t *models.Template, ownerID string, opts Options) (*Session, error) {
	if t == nil || len(t.Exercises) == 0 {
		return nil, ErrEmptyTemplate
	}
	opts = opts.withDefaults()
	now := opts.Clock.Now()

	w := &models.WorkoutSession{
		ID:          opts.NewID(),
		OwnerID:     ownerID,
		RoutineID:   t.RoutineID,
		RoutineName: t.RoutineName,
		Status:      models.SessionStatusActive,
		StartedAt:   now,
		UpdatedAt:   now,
	}
	for i, te := range t.Exercises {
		if len(te.Sets) == 0 {
			return nil, fmt.Errorf("%w: exercise %d (%s) has no sets", ErrEmptyTemplate, i, te.Exercise.Name)
		}
		ex := models.ExerciseSession{
			ExerciseID:  te.Exercise.ID,
			Name:        te.Exercise.Name,
			Equipment:   te.Exercise.Equipment,
			MuscleGroup: te.Exercise.MuscleGroup,
			RestSeconds: te.RestSeconds,
			Sets:        make([]models.SetRecord, len(te.Sets)),
		}
		for j, ps := range te.Sets {
			ex.Sets[j] = models.SetRecord{
				Index:        j,
				TargetReps:   ps.TargetReps,
				TargetWeight: ps.TargetWeight,
				Status:       models.SetStatusPending,
			}
		}
		w.Exercises = append(w.Exercises, ex)
	}

	s := newSession(w, opts)
	s.log.Info("workout started", "session", w.ID, "owner", ownerID, "routine", t.RoutineID, "sets", w.TotalPlannedSets())
	return s, nil
}

// Restore rebuilds a live session from a persisted record. A session saved
// mid-rest resumes its countdown from the original start time, so rest that
// elapsed while the process was gone is not waited out again.
func Restore(w *models.WorkoutSession, opts Options) (*Session, error) {
	if w == nil {
		return nil, ErrNoActiveSession
	}
	if w.Status.Terminal() {
		return nil, fmt.Errorf("%w: workout %s is %s", ErrInvalidState, w.ID, w.Status)
	}
	if len(w.Exercises) == 0 {
		return nil, ErrEmptyTemplate
	}
	opts = opts.withDefaults()
	w = w.Clone()

	s := newSession(w, opts)
	if w.Status == models.SessionStatusResting {
		if w.RestStartedAt == nil || w.RestDuration <= 0 {
			w.Status = models.SessionStatusActive
			w.RestStartedAt = nil
		} else {
			run, err := s.timer.StartAt(*w.RestStartedAt, w.RestDuration)
			if err != nil {
				return nil, err
			}
			s.restRun = run
		}
	}
	s.log.Info("workout resumed", "session", w.ID, "status", w.Status)
	s.timer.Check()
	return s, nil
}

func newSession(w *models.WorkoutSession, opts Options) *Session {
	s := &Session{
		id:    w.ID,
		clock: opts.Clock,
		log:   opts.Logger.With("component", "workout"),
		opts:  opts,
		w:     w,
		bus:   NewBus(),
	}
	s.timer = rest.New(opts.Clock, s.onRestTick, s.onRestDone)
	s.saver = newSaver(opts.Persister, opts.SaveTimeout, s.onSaveFailed)
	return s
}

// ID returns the session identity.
func (s *Session) ID() string { return s.id }

// Subscribe returns the session's event stream.
func (s *Session) Subscribe() (<-chan Event, func()) { return s.bus.Subscribe() }

// Status returns the current session status.
func (s *Session) Status() models.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.w.Status
}

// Cursor returns the (exercise, set) pair presented to the user.
func (s *Session) Cursor() models.Cursor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.w.Cursor
}

// Summary returns the running totals. Once finished the summary is frozen.
func (s *Session) Summary() models.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.final != nil {
		return *s.final
	}
	return stats.Compute(s.w, s.clock.Now())
}

// State returns a deep copy of the session with its summary.
func (s *Session) State() Snapshot {
	s.mu.RLock()
	w := s.w.Clone()
	final := s.final
	s.mu.RUnlock()

	snap := Snapshot{Workout: w, RestRemaining: s.timer.Remaining()}
	if final != nil {
		snap.Summary = *final
	} else {
		snap.Summary = stats.Compute(w, s.clock.Now())
	}
	return snap
}

// Target returns the planned reps and weight of a set, with weight zero
// when none was planned.
func (s *Session) Target(exercise, set int) (reps int, weight float64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.recordLocked(exercise, set)
	if err != nil {
		return 0, 0, err
	}
	if rec.TargetWeight != nil {
		weight = *rec.TargetWeight
	}
	return rec.TargetReps, weight, nil
}

// CompleteSet records the performed reps and weight for a pending set. If
// the exercise has rest configured the session moves to resting, otherwise
// the cursor advances to the next pending set.
func (s *Session) CompleteSet(exercise, set, reps int, weight float64) error {
	if reps < 0 || weight < 0 {
		return fmt.Errorf("%w: reps and weight must not be negative", ErrInvalidInput)
	}
	if !s.writer.TryLock() {
		return ErrBusy
	}
	defer s.writer.Unlock()

	s.mu.Lock()
	if err := s.requireLocked("complete set", models.SessionStatusActive); err != nil {
		s.mu.Unlock()
		return err
	}
	rec, err := s.recordLocked(exercise, set)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if rec.Status != models.SetStatusPending {
		s.mu.Unlock()
		return fmt.Errorf("%w: set %d/%d is %s", ErrInvalidCursor, exercise, set, rec.Status)
	}

	now := s.clock.Now()
	rec.Status = models.SetStatusCompleted
	rec.ActualReps = &reps
	rec.ActualWeight = &weight
	rec.CompletedAt = &now
	s.w.Cursor = models.Cursor{Exercise: exercise, Set: set}

	events := []Event{s.event(EventSetCompleted, now, func(e *Event) {
		e.Exercise, e.Set = exercise, set
	})}
	if restSeconds := s.w.Exercises[exercise].RestSeconds; restSeconds > 0 {
		if err := s.armRestLocked(now, restSeconds); err != nil {
			s.log.Warn("rest timer not armed", "session", s.id, "error", err)
			s.advanceLocked()
		} else {
			events = append(events, s.stateEventLocked(now))
		}
	} else {
		s.advanceLocked()
	}
	snap, version := s.commitLocked(now)
	s.mu.Unlock()

	s.log.Debug("set completed", "session", s.id, "exercise", exercise, "set", set, "reps", reps, "weight", weight)
	s.publish(events...)
	if s.opts.Autosave {
		s.saver.enqueue(version, snap)
	}
	return nil
}

// SkipSet marks a pending set as skipped and advances the cursor. No rest is
// started.
func (s *Session) SkipSet(exercise, set int) error {
	if !s.writer.TryLock() {
		return ErrBusy
	}
	defer s.writer.Unlock()

	s.mu.Lock()
	if err := s.requireLocked("skip set", models.SessionStatusActive); err != nil {
		s.mu.Unlock()
		return err
	}
	rec, err := s.recordLocked(exercise, set)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if rec.Status != models.SetStatusPending {
		s.mu.Unlock()
		return fmt.Errorf("%w: set %d/%d is %s", ErrInvalidCursor, exercise, set, rec.Status)
	}

	now := s.clock.Now()
	rec.Status = models.SetStatusSkipped
	s.w.Cursor = models.Cursor{Exercise: exercise, Set: set}
	s.advanceLocked()
	snap, version := s.commitLocked(now)
	s.mu.Unlock()

	s.publish(s.event(EventSetSkipped, now, func(e *Event) { e.Exercise, e.Set = exercise, set }))
	if s.opts.Autosave {
		s.saver.enqueue(version, snap)
	}
	return nil
}

// UpdateSet corrects the actual reps and weight of a completed set. Its
// status and completion time are unchanged.
func (s *Session) UpdateSet(exercise, set, reps int, weight float64) error {
	if reps < 0 || weight < 0 {
		return fmt.Errorf("%w: reps and weight must not be negative", ErrInvalidInput)
	}
	if !s.writer.TryLock() {
		return ErrBusy
	}
	defer s.writer.Unlock()

	s.mu.Lock()
	if err := s.requireLocked("update set", models.SessionStatusActive, models.SessionStatusResting); err != nil {
		s.mu.Unlock()
		return err
	}
	rec, err := s.recordLocked(exercise, set)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if rec.Status != models.SetStatusCompleted {
		s.mu.Unlock()
		return fmt.Errorf("%w: set %d/%d is %s, only completed sets can be updated", ErrInvalidCursor, exercise, set, rec.Status)
	}

	now := s.clock.Now()
	rec.ActualReps = &reps
	rec.ActualWeight = &weight
	snap, version := s.commitLocked(now)
	s.mu.Unlock()

	s.publish(s.event(EventSetUpdated, now, func(e *Event) { e.Exercise, e.Set = exercise, set }))
	if s.opts.Autosave {
		s.saver.enqueue(version, snap)
	}
	return nil
}

// ReopenSet returns a completed or skipped set to pending, clearing its
// actuals, and moves the cursor onto it.
func (s *Session) ReopenSet(exercise, set int) error {
	if !s.writer.TryLock() {
		return ErrBusy
	}
	defer s.writer.Unlock()

	s.mu.Lock()
	if err := s.requireLocked("reopen set", models.SessionStatusActive, models.SessionStatusResting); err != nil {
		s.mu.Unlock()
		return err
	}
	rec, err := s.recordLocked(exercise, set)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if rec.Status == models.SetStatusPending {
		s.mu.Unlock()
		return fmt.Errorf("%w: set %d/%d is already pending", ErrInvalidCursor, exercise, set)
	}

	now := s.clock.Now()
	rec.Status = models.SetStatusPending
	rec.ActualReps = nil
	rec.ActualWeight = nil
	rec.CompletedAt = nil
	rec.Reopened++
	s.w.Cursor = models.Cursor{Exercise: exercise, Set: set}
	snap, version := s.commitLocked(now)
	s.mu.Unlock()

	s.publish(s.event(EventSetReopened, now, func(e *Event) { e.Exercise, e.Set = exercise, set }))
	if s.opts.Autosave {
		s.saver.enqueue(version, snap)
	}
	return nil
}

// AnnotateSet sets the free-form note and drop-set/failure flags of a set.
func (s *Session) AnnotateSet(exercise, set int, note string, dropSet, failure bool) error {
	if !s.writer.TryLock() {
		return ErrBusy
	}
	defer s.writer.Unlock()

	s.mu.Lock()
	if err := s.requireLocked("annotate set", models.SessionStatusActive, models.SessionStatusResting); err != nil {
		s.mu.Unlock()
		return err
	}
	rec, err := s.recordLocked(exercise, set)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	now := s.clock.Now()
	rec.Note = note
	rec.DropSet = dropSet
	rec.Failure = failure
	snap, version := s.commitLocked(now)
	s.mu.Unlock()

	s.publish(s.event(EventSetUpdated, now, func(e *Event) { e.Exercise, e.Set = exercise, set }))
	if s.opts.Autosave {
		s.saver.enqueue(version, snap)
	}
	return nil
}

// SkipRest ends the current rest early and advances the cursor. The set that
// started the rest keeps its recorded data.
func (s *Session) SkipRest() error {
	if !s.writer.TryLock() {
		return ErrBusy
	}
	defer s.writer.Unlock()

	s.mu.Lock()
	if err := s.requireLocked("skip rest", models.SessionStatusResting); err != nil {
		s.mu.Unlock()
		return err
	}
	s.timer.Cancel()
	now := s.clock.Now()
	s.endRestLocked(now)
	s.advanceLocked()
	events := []Event{s.event(EventRestFinished, now, nil), s.stateEventLocked(now)}
	snap, version := s.commitLocked(now)
	s.mu.Unlock()

	s.publish(events...)
	if s.opts.Autosave {
		s.saver.enqueue(version, snap)
	}
	return nil
}

// StartRest starts a manual rest of the given length from the active state.
func (s *Session) StartRest(seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("%w: rest must be positive, got %d", ErrInvalidInput, seconds)
	}
	if !s.writer.TryLock() {
		return ErrBusy
	}
	defer s.writer.Unlock()

	s.mu.Lock()
	if err := s.requireLocked("start rest", models.SessionStatusActive); err != nil {
		s.mu.Unlock()
		return err
	}
	now := s.clock.Now()
	if err := s.armRestLocked(now, seconds); err != nil {
		s.mu.Unlock()
		return err
	}
	event := s.stateEventLocked(now)
	snap, version := s.commitLocked(now)
	s.mu.Unlock()

	s.publish(event)
	if s.opts.Autosave {
		s.saver.enqueue(version, snap)
	}
	return nil
}

// CheckRest completes a rest whose deadline passed while the process was
// suspended. It reports whether the rest ended.
func (s *Session) CheckRest() bool {
	return s.timer.Check()
}

// SelectExercise moves the display cursor to an exercise's first pending set
// (or its first set when none is pending). Records and status are untouched.
func (s *Session) SelectExercise(exercise int) error {
	if !s.writer.TryLock() {
		return ErrBusy
	}
	defer s.writer.Unlock()

	s.mu.Lock()
	if err := s.requireLocked("select exercise", models.SessionStatusActive, models.SessionStatusResting); err != nil {
		s.mu.Unlock()
		return err
	}
	if exercise < 0 || exercise >= len(s.w.Exercises) {
		s.mu.Unlock()
		return fmt.Errorf("%w: exercise %d out of range", ErrInvalidCursor, exercise)
	}
	set := 0
	if j, ok := firstPending(s.w.Exercises[exercise]); ok {
		set = j
	}
	s.w.Cursor = models.Cursor{Exercise: exercise, Set: set}
	now := s.clock.Now()
	s.version++
	s.w.UpdatedAt = now
	s.mu.Unlock()

	s.publish(s.event(EventCursorMoved, now, func(e *Event) { e.Exercise, e.Set = exercise, set }))
	return nil
}

// Finish ends the workout, freezes its summary and persists it. Pending sets
// are left pending and excluded from the totals. Finishing an already
// finished session returns the same summary without saving again.
func (s *Session) Finish() (models.Summary, error) {
	if !s.writer.TryLock() {
		return models.Summary{}, ErrBusy
	}
	defer s.writer.Unlock()

	s.mu.Lock()
	if s.w.Status == models.SessionStatusFinished && s.final != nil {
		sum := *s.final
		s.mu.Unlock()
		return sum, nil
	}
	if err := s.requireLocked("finish", models.SessionStatusActive, models.SessionStatusResting); err != nil {
		s.mu.Unlock()
		return models.Summary{}, err
	}

	s.timer.Cancel()
	now := s.clock.Now()
	if s.w.Status == models.SessionStatusResting {
		s.endRestLocked(now)
	}
	s.w.Status = models.SessionStatusFinished
	s.w.EndedAt = &now
	sum := stats.Compute(s.w, now)
	s.final = &sum
	events := []Event{
		s.stateEventLocked(now),
		s.event(EventSessionFinished, now, func(e *Event) {
			frozen := sum
			e.Summary = &frozen
		}),
	}
	snap, version := s.commitLocked(now)
	s.mu.Unlock()

	s.log.Info("workout finished", "session", s.id, "completed_sets", sum.CompletedSets, "volume", sum.TotalVolume, "elapsed", sum.Elapsed.String())
	s.publish(events...)
	s.saver.enqueue(version, snap)
	return sum, nil
}

// Abandon ends the workout without finishing it and persists the partial
// session for later review.
func (s *Session) Abandon() error {
	if !s.writer.TryLock() {
		return ErrBusy
	}
	defer s.writer.Unlock()

	s.mu.Lock()
	if err := s.requireLocked("abandon", models.SessionStatusActive, models.SessionStatusResting); err != nil {
		s.mu.Unlock()
		return err
	}
	s.timer.Cancel()
	now := s.clock.Now()
	if s.w.Status == models.SessionStatusResting {
		s.endRestLocked(now)
	}
	s.w.Status = models.SessionStatusAbandoned
	s.w.EndedAt = &now
	event := s.stateEventLocked(now)
	snap, version := s.commitLocked(now)
	s.mu.Unlock()

	s.log.Info("workout abandoned", "session", s.id)
	s.publish(event)
	s.saver.enqueue(version, snap)
	return nil
}

// Save synchronously persists the current state. It is the retry path after
// a failed background save.
func (s *Session) Save(ctx context.Context) error {
	if s.opts.Persister == nil {
		return nil
	}
	s.mu.RLock()
	snap := s.w.Clone()
	version := s.version
	s.mu.RUnlock()
	return s.saver.write(ctx, version, snap)
}

// Flush waits for background saves to complete and returns the result of
// the most recent one.
func (s *Session) Flush(ctx context.Context) error {
	return s.saver.wait(ctx)
}

// LastSaveError returns the error of the most recent save, or nil.
func (s *Session) LastSaveError() error {
	return s.saver.err()
}

// Close stops the rest timer and ends all subscriptions. The persisted state
// is left as it is so the session can be resumed later.
func (s *Session) Close() {
	s.timer.Cancel()
	s.bus.Close()
}

func (s *Session) onRestTick(run uint64, remaining int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.w.Status != models.SessionStatusResting || s.restRun != run {
		return
	}
	s.bus.Publish(s.event(EventRestTick, s.clock.Now(), func(e *Event) {
		e.SecondsRemaining = remaining
	}))
}

// onRestDone runs on the timer goroutine; it queues behind any mutation in
// flight rather than failing with ErrBusy.
func (s *Session) onRestDone(run uint64) {
	s.writer.Lock()
	defer s.writer.Unlock()

	s.mu.Lock()
	if s.w.Status != models.SessionStatusResting || s.restRun != run {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	s.endRestLocked(now)
	s.advanceLocked()
	events := []Event{s.event(EventRestFinished, now, nil), s.stateEventLocked(now)}
	snap, version := s.commitLocked(now)
	s.mu.Unlock()

	s.publish(events...)
	if s.opts.Autosave {
		s.saver.enqueue(version, snap)
	}
}

func (s *Session) onSaveFailed(err error) {
	s.log.Warn("workout save failed", "session", s.id, "error", err)
	s.bus.Publish(s.event(EventSaveFailed, s.clock.Now(), func(e *Event) {
		e.Error = err.Error()
	}))
}

func (s *Session) requireLocked(op string, allowed ...models.SessionStatus) error {
	for _, st := range allowed {
		if s.w.Status == st {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidState, op, s.w.Status)
}

func (s *Session) recordLocked(exercise, set int) (*models.SetRecord, error) {
	if exercise < 0 || exercise >= len(s.w.Exercises) {
		return nil, fmt.Errorf("%w: exercise %d out of range", ErrInvalidCursor, exercise)
	}
	sets := s.w.Exercises[exercise].Sets
	if set < 0 || set >= len(sets) {
		return nil, fmt.Errorf("%w: set %d out of range for exercise %d", ErrInvalidCursor, set, exercise)
	}
	return &s.w.Exercises[exercise].Sets[set], nil
}

func (s *Session) armRestLocked(now time.Time, seconds int) error {
	run, err := s.timer.StartAt(now, seconds)
	if err != nil {
		return err
	}
	s.restRun = run
	started := now
	s.w.Status = models.SessionStatusResting
	s.w.RestStartedAt = &started
	s.w.RestDuration = seconds
	return nil
}

// endRestLocked returns to active and books the rest actually taken.
func (s *Session) endRestLocked(now time.Time) {
	if s.w.RestStartedAt != nil {
		taken := now.Sub(*s.w.RestStartedAt)
		if limit := time.Duration(s.w.RestDuration) * time.Second; taken > limit {
			taken = limit
		}
		if taken > 0 {
			s.w.RestSeconds += int(taken / time.Second)
		}
	}
	s.w.Status = models.SessionStatusActive
	s.w.RestStartedAt = nil
	s.w.RestDuration = 0
}

// advanceLocked moves the cursor to the next pending set. A cursor already on
// a pending set stays put, so a manual rest never skips an unfinished set.
func (s *Session) advanceLocked() {
	cur := s.w.Cursor
	if rec, err := s.recordLocked(cur.Exercise, cur.Set); err == nil && rec.Status == models.SetStatusPending {
		return
	}
	if next, ok := nextPending(s.w.Exercises, s.w.Cursor); ok {
		s.w.Cursor = next
	}
}

func (s *Session) commitLocked(now time.Time) (*models.WorkoutSession, uint64) {
	s.version++
	s.w.UpdatedAt = now
	return s.w.Clone(), s.version
}

func (s *Session) stateEventLocked(now time.Time) Event {
	state := s.w.Status
	return s.event(EventStateChanged, now, func(e *Event) { e.State = state })
}

func (s *Session) event(kind EventKind, at time.Time, fill func(*Event)) Event {
	e := Event{Kind: kind, SessionID: s.id, At: at}
	if fill != nil {
		fill(&e)
	}
	return e
}

func (s *Session) publish(events ...Event) {
	for _, e := range events {
		s.bus.Publish(e)
	}
}

package models

import "time"

// SetStatus is the lifecycle of a single set record.
type SetStatus string

const (
	SetStatusPending   SetStatus = "pending"
	SetStatusCompleted SetStatus = "completed"
	SetStatusSkipped   SetStatus = "skipped"
)

// SessionStatus represents the state of a workout session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusResting   SessionStatus = "resting"
	SessionStatusFinished  SessionStatus = "finished"
	SessionStatusAbandoned SessionStatus = "abandoned"
)

// Terminal reports whether no further mutation is accepted.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusFinished || s == SessionStatusAbandoned
}

// SetRecord is the performed (or pending) state of one planned set.
type SetRecord struct {
	Index        int        `json:"index"`
	TargetReps   int        `json:"target_reps"`
	TargetWeight *float64   `json:"target_weight,omitempty"`
	Status       SetStatus  `json:"status"`
	ActualReps   *int       `json:"actual_reps,omitempty"`
	ActualWeight *float64   `json:"actual_weight,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Note         string     `json:"note,omitempty"`
	DropSet      bool       `json:"drop_set,omitempty"`
	Failure      bool       `json:"failure,omitempty"`
	Reopened     int        `json:"reopened,omitempty"`
}

// Volume returns reps x weight for a completed set, zero otherwise.
func (r SetRecord) Volume() float64 {
	if r.Status != SetStatusCompleted || r.ActualReps == nil || r.ActualWeight == nil {
		return 0
	}
	return float64(*r.ActualReps) * *r.ActualWeight
}

// TargetAchieved reports whether a completed set met its planned reps.
func (r SetRecord) TargetAchieved() bool {
	return r.Status == SetStatusCompleted && r.TargetReps > 0 &&
		r.ActualReps != nil && *r.ActualReps >= r.TargetReps
}

// ExerciseSession is one exercise within a running workout. Name, Equipment
// and MuscleGroup are captured when the session starts.
type ExerciseSession struct {
	ExerciseID  string      `json:"exercise_id"`
	Name        string      `json:"name"`
	Equipment   string      `json:"equipment,omitempty"`
	MuscleGroup string      `json:"muscle_group,omitempty"`
	RestSeconds int         `json:"rest_seconds"`
	Sets        []SetRecord `json:"sets"`
}

// Cursor identifies the (exercise, set) pair presented to the user.
type Cursor struct {
	Exercise int `json:"exercise"`
	Set      int `json:"set"`
}

// WorkoutSession is the full persisted state of a live or past workout.
type WorkoutSession struct {
	ID            string            `json:"id"`
	OwnerID       string            `json:"owner_id"`
	RoutineID     string            `json:"routine_id,omitempty"`
	RoutineName   string            `json:"routine_name,omitempty"`
	Status        SessionStatus     `json:"status"`
	Exercises     []ExerciseSession `json:"exercises"`
	Cursor        Cursor            `json:"cursor"`
	StartedAt     time.Time         `json:"started_at"`
	EndedAt       *time.Time        `json:"ended_at,omitempty"`
	RestSeconds   int               `json:"rest_seconds"`
	RestStartedAt *time.Time        `json:"rest_started_at,omitempty"`
	RestDuration  int               `json:"rest_duration,omitempty"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// TotalPlannedSets counts every set record in the session.
func (w *WorkoutSession) TotalPlannedSets() int {
	n := 0
	for _, ex := range w.Exercises {
		n += len(ex.Sets)
	}
	return n
}

// Clone returns a deep copy safe to hand to another goroutine.
func (w *WorkoutSession) Clone() *WorkoutSession {
	if w == nil {
		return nil
	}
	c := *w
	c.EndedAt = cloneTime(w.EndedAt)
	c.RestStartedAt = cloneTime(w.RestStartedAt)
	c.Exercises = make([]ExerciseSession, len(w.Exercises))
	for i, ex := range w.Exercises {
		ex.Sets = append([]SetRecord(nil), ex.Sets...)
		for j := range ex.Sets {
			ex.Sets[j].ActualReps = cloneInt(ex.Sets[j].ActualReps)
			ex.Sets[j].ActualWeight = cloneFloat(ex.Sets[j].ActualWeight)
			ex.Sets[j].TargetWeight = cloneFloat(ex.Sets[j].TargetWeight)
			ex.Sets[j].CompletedAt = cloneTime(ex.Sets[j].CompletedAt)
		}
		c.Exercises[i] = ex
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

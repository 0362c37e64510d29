package store

import (
	"context"
	"time"

	"github.com/joescharf/lift/internal/models"
	"github.com/joescharf/lift/internal/workout"
)

// ErrNotFound is returned (wrapped) when a row does not exist.
var ErrNotFound = workout.ErrNotFound

// WorkoutListFilter specifies filters for listing workouts.
type WorkoutListFilter struct {
	OwnerID string
	Status  models.SessionStatus
	Since   time.Time
	Limit   int
}

// Store defines the persistence interface for lift.
type Store interface {
	// Exercises
	CreateExercise(ctx context.Context, e *models.ExerciseTemplate) error
	GetExercise(ctx context.Context, id string) (*models.ExerciseTemplate, error)
	GetExerciseByName(ctx context.Context, name string) (*models.ExerciseTemplate, error)
	ListExercises(ctx context.Context) ([]*models.ExerciseTemplate, error)
	UpdateExercise(ctx context.Context, e *models.ExerciseTemplate) error
	DeleteExercise(ctx context.Context, id string) error

	// Routines
	CreateRoutine(ctx context.Context, r *models.Routine) error
	GetRoutine(ctx context.Context, id string) (*models.Routine, error)
	GetRoutineByName(ctx context.Context, name string) (*models.Routine, error)
	ListRoutines(ctx context.Context) ([]*models.Routine, error)
	UpdateRoutine(ctx context.Context, r *models.Routine) error
	DeleteRoutine(ctx context.Context, id string) error
	FetchTemplate(ctx context.Context, routineID string) (*models.Template, error)

	// Workouts
	SaveWorkout(ctx context.Context, w *models.WorkoutSession) error
	LoadActiveWorkout(ctx context.Context, ownerID string) (*models.WorkoutSession, error)
	GetWorkout(ctx context.Context, id string) (*models.WorkoutSession, error)
	ListWorkouts(ctx context.Context, filter WorkoutListFilter) ([]*models.WorkoutSession, error)
	DeleteWorkout(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var (
	_ Store             = (*SQLiteStore)(nil)
	_ workout.Catalog   = (*SQLiteStore)(nil)
	_ workout.Persister = (*SQLiteStore)(nil)
)

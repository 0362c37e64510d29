package workout

import (
	"context"

	"github.com/joescharf/lift/internal/models"
)

// Catalog fetches routine templates. Implementations return an error
// wrapping ErrNotFound when the routine does not exist.
type Catalog interface {
	FetchTemplate(ctx context.Context, routineID string) (*models.Template, error)
}

// Persister stores workout sessions. SaveWorkout must upsert by session id so
// repeated saves never create duplicate records. LoadActiveWorkout returns
// nil, nil when the owner has no live session.
type Persister interface {
	SaveWorkout(ctx context.Context, w *models.WorkoutSession) error
	LoadActiveWorkout(ctx context.Context, ownerID string) (*models.WorkoutSession, error)
}

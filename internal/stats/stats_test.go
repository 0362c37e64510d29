package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joescharf/lift/internal/models"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

var t0 = time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)

func completed(reps int, weight float64) models.SetRecord {
	at := t0.Add(time.Minute)
	return models.SetRecord{
		Status:       models.SetStatusCompleted,
		ActualReps:   intPtr(reps),
		ActualWeight: floatPtr(weight),
		CompletedAt:  &at,
	}
}

func sampleSession() *models.WorkoutSession {
	return &models.WorkoutSession{
		ID:        "w1",
		Status:    models.SessionStatusActive,
		StartedAt: t0,
		Exercises: []models.ExerciseSession{
			{Name: "Squat", Sets: []models.SetRecord{
				completed(5, 100),
				completed(5, 100),
				{Status: models.SetStatusSkipped},
			}},
			{Name: "Row", Sets: []models.SetRecord{
				completed(8, 60),
				{Status: models.SetStatusPending},
			}},
		},
	}
}

func TestCompute_Totals(t *testing.T) {
	s := Compute(sampleSession(), t0.Add(30*time.Minute))

	assert.Equal(t, 3, s.CompletedSets)
	assert.Equal(t, 1, s.SkippedSets)
	assert.Equal(t, 1, s.PendingSets)
	assert.Equal(t, 5, s.TotalPlannedSets)
	assert.Equal(t, 18, s.TotalReps)
	assert.InDelta(t, 1480.0, s.TotalVolume, 0.001)
	assert.Equal(t, 60, s.CompletionPercent)
	assert.Equal(t, 30*time.Minute, s.Elapsed)
	assert.False(t, s.Final)
}

func TestCompute_CountsAlwaysBalance(t *testing.T) {
	s := Compute(sampleSession(), t0)
	assert.Equal(t, s.TotalPlannedSets, s.CompletedSets+s.SkippedSets+s.PendingSets)
}

func TestCompute_TerminalUsesEndTime(t *testing.T) {
	w := sampleSession()
	end := t0.Add(45 * time.Minute)
	w.Status = models.SessionStatusFinished
	w.EndedAt = &end

	s := Compute(w, t0.Add(5*time.Hour))
	assert.Equal(t, 45*time.Minute, s.Elapsed)
	assert.True(t, s.Final)
}

func TestCompute_CompletedWithoutWeight(t *testing.T) {
	w := &models.WorkoutSession{
		StartedAt: t0,
		Exercises: []models.ExerciseSession{{Sets: []models.SetRecord{
			{Status: models.SetStatusCompleted, ActualReps: intPtr(12)},
		}}},
	}
	s := Compute(w, t0)
	assert.Equal(t, 12, s.TotalReps)
	assert.Zero(t, s.TotalVolume)
}

func TestCompute_EmptyAndNil(t *testing.T) {
	assert.Equal(t, models.Summary{}, Compute(nil, t0))

	s := Compute(&models.WorkoutSession{}, t0)
	assert.Zero(t, s.TotalPlannedSets)
	assert.Zero(t, s.CompletionPercent)
	assert.Zero(t, s.Elapsed)
}

func TestCompute_ClockBeforeStart(t *testing.T) {
	s := Compute(sampleSession(), t0.Add(-time.Minute))
	assert.Zero(t, s.Elapsed)
}

func TestHistory(t *testing.T) {
	finished := sampleSession()
	end := t0.Add(61 * time.Minute)
	finished.Status = models.SessionStatusFinished
	finished.EndedAt = &end

	abandoned := sampleSession()
	abandoned.Status = models.SessionStatusAbandoned

	h := History([]*models.WorkoutSession{finished, abandoned, sampleSession(), nil})
	assert.Equal(t, 1, h.TotalWorkouts)
	assert.Equal(t, 61, h.TotalMinutes)
	assert.Equal(t, 3, h.TotalSets)
	assert.Equal(t, 18, h.TotalReps)
	assert.InDelta(t, 1480.0, h.TotalVolume, 0.001)
}

// Package stats derives workout totals from set records. Everything here is a
// pure function of its inputs.
package stats

import (
	"time"

	"github.com/joescharf/lift/internal/models"
)

// Compute returns the running totals for w at now. Elapsed time is measured
// to now while the session is live and to its end time once terminal.
func Compute(w *models.WorkoutSession, now time.Time) models.Summary {
	var s models.Summary
	if w == nil {
		return s
	}

	for _, ex := range w.Exercises {
		for _, set := range ex.Sets {
			s.TotalPlannedSets++
			switch set.Status {
			case models.SetStatusCompleted:
				s.CompletedSets++
				if set.ActualReps != nil {
					s.TotalReps += *set.ActualReps
				}
				s.TotalVolume += set.Volume()
			case models.SetStatusSkipped:
				s.SkippedSets++
			default:
				s.PendingSets++
			}
		}
	}

	if s.TotalPlannedSets > 0 {
		s.CompletionPercent = s.CompletedSets * 100 / s.TotalPlannedSets
	}
	s.RestSeconds = w.RestSeconds

	end := now
	if w.Status.Terminal() && w.EndedAt != nil {
		end = *w.EndedAt
		s.Final = true
	}
	if !w.StartedAt.IsZero() && end.After(w.StartedAt) {
		s.Elapsed = end.Sub(w.StartedAt)
	}
	return s
}

// History rolls up finished workouts. Abandoned and live sessions are ignored.
func History(workouts []*models.WorkoutSession) models.HistoryStats {
	var h models.HistoryStats
	for _, w := range workouts {
		if w == nil || w.Status != models.SessionStatusFinished {
			continue
		}
		s := Compute(w, w.UpdatedAt)
		h.TotalWorkouts++
		h.TotalMinutes += int(s.Elapsed / time.Minute)
		h.TotalSets += s.CompletedSets
		h.TotalReps += s.TotalReps
		h.TotalVolume += s.TotalVolume
	}
	return h
}

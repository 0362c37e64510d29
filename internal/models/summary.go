package models

import "time"

// Summary holds running totals derived from a workout session.
type Summary struct {
	CompletedSets     int           `json:"completed_sets"`
	SkippedSets       int           `json:"skipped_sets"`
	PendingSets       int           `json:"pending_sets"`
	TotalPlannedSets  int           `json:"total_planned_sets"`
	TotalReps         int           `json:"total_reps"`
	TotalVolume       float64       `json:"total_volume"`
	Elapsed           time.Duration `json:"elapsed"`
	RestSeconds       int           `json:"rest_seconds"`
	CompletionPercent int           `json:"completion_percent"`
	Final             bool          `json:"final"`
}

// HistoryStats aggregates finished workouts for an owner.
type HistoryStats struct {
	TotalWorkouts int     `json:"total_workouts"`
	TotalMinutes  int     `json:"total_minutes"`
	TotalSets     int     `json:"total_sets"`
	TotalReps     int     `json:"total_reps"`
	TotalVolume   float64 `json:"total_volume"`
}

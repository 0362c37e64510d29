package models

import "time"

// ExerciseTemplate is a catalog exercise with its default prescription.
type ExerciseTemplate struct {
	ID                 string
	Name               string
	DefaultSets        int
	DefaultReps        int
	DefaultRestSeconds int
	DefaultWeight      *float64
	Equipment          string
	MuscleGroup        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RoutineExercise is one ordered entry of a routine. Zero values fall back to
// the exercise defaults.
type RoutineExercise struct {
	ExerciseID  string
	Position    int
	Sets        int
	Reps        int
	Weight      *float64
	RestSeconds int
}

// Routine is a saved plan of exercises.
type Routine struct {
	ID          string
	Name        string
	Description string
	Exercises   []RoutineExercise
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PlannedSet is a single prescribed set.
type PlannedSet struct {
	Index        int
	TargetReps   int
	TargetWeight *float64
	RestSeconds  int
}

// TemplateExercise pairs a catalog exercise with its planned sets.
type TemplateExercise struct {
	Exercise    ExerciseTemplate
	Sets        []PlannedSet
	RestSeconds int
}

// Template is the planned structure a workout session is materialized from.
// RoutineID is empty for ad-hoc workouts.
type Template struct {
	RoutineID   string
	RoutineName string
	Exercises   []TemplateExercise
}

// Package catalog imports exercises and routines from YAML files into the
// store.
//
// A catalog file looks like:
//
//	exercises:
//	  - name: Bench Press
//	    sets: 3
//	    reps: 8
//	    rest: 120
//	    weight: 60
//	    equipment: barbell
//	    muscle_group: chest
//	routines:
//	  - name: Upper A
//	    description: Push focus
//	    exercises:
//	      - name: Bench Press
//	        sets: 4
//	        reps: 6
//	        weight: 85
//
// Routine entries may leave any field out to use the exercise defaults.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joescharf/lift/internal/models"
	"github.com/joescharf/lift/internal/store"
)

// File is the YAML document layout.
type File struct {
	Exercises []Exercise `yaml:"exercises"`
	Routines  []Routine  `yaml:"routines"`
}

// Exercise is a catalog exercise definition.
type Exercise struct {
	Name        string   `yaml:"name"`
	Sets        int      `yaml:"sets"`
	Reps        int      `yaml:"reps"`
	Rest        int      `yaml:"rest"`
	Weight      *float64 `yaml:"weight"`
	Equipment   string   `yaml:"equipment"`
	MuscleGroup string   `yaml:"muscle_group"`
}

// Routine is a named, ordered list of exercise entries.
type Routine struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Exercises   []RoutineEntry `yaml:"exercises"`
}

// RoutineEntry references an exercise by name with optional overrides.
type RoutineEntry struct {
	Name   string   `yaml:"name"`
	Sets   int      `yaml:"sets"`
	Reps   int      `yaml:"reps"`
	Rest   int      `yaml:"rest"`
	Weight *float64 `yaml:"weight"`
}

// Store is the subset of store.Store the importer needs.
type Store interface {
	GetExerciseByName(ctx context.Context, name string) (*models.ExerciseTemplate, error)
	CreateExercise(ctx context.Context, e *models.ExerciseTemplate) error
	UpdateExercise(ctx context.Context, e *models.ExerciseTemplate) error
	GetRoutineByName(ctx context.Context, name string) (*models.Routine, error)
	CreateRoutine(ctx context.Context, r *models.Routine) error
	UpdateRoutine(ctx context.Context, r *models.Routine) error
}

// Result counts what an import changed.
type Result struct {
	ExercisesCreated int
	ExercisesUpdated int
	RoutinesCreated  int
	RoutinesUpdated  int
}

// Parse decodes and validates a catalog file.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("catalog file is empty")
		}
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks names and numbers. Routine entries must name an exercise
// defined in the file or, at import time, already in the store.
func (f *File) Validate() error {
	var problems []string
	seen := make(map[string]bool)
	for i, e := range f.Exercises {
		where := fmt.Sprintf("exercises[%d]", i)
		if strings.TrimSpace(e.Name) == "" {
			problems = append(problems, where+": name is required")
		} else if seen[key(e.Name)] {
			problems = append(problems, fmt.Sprintf("%s: duplicate exercise %q", where, e.Name))
		}
		seen[key(e.Name)] = true
		problems = append(problems, checkNumbers(where, e.Sets, e.Reps, e.Rest, e.Weight)...)
	}

	routines := make(map[string]bool)
	for i, r := range f.Routines {
		where := fmt.Sprintf("routines[%d]", i)
		if strings.TrimSpace(r.Name) == "" {
			problems = append(problems, where+": name is required")
		} else if routines[key(r.Name)] {
			problems = append(problems, fmt.Sprintf("%s: duplicate routine %q", where, r.Name))
		}
		routines[key(r.Name)] = true
		if len(r.Exercises) == 0 {
			problems = append(problems, where+": at least one exercise is required")
		}
		for j, entry := range r.Exercises {
			ew := fmt.Sprintf("%s.exercises[%d]", where, j)
			if strings.TrimSpace(entry.Name) == "" {
				problems = append(problems, ew+": name is required")
			}
			problems = append(problems, checkNumbers(ew, entry.Sets, entry.Reps, entry.Rest, entry.Weight)...)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid catalog:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

func checkNumbers(where string, sets, reps, rest int, weight *float64) []string {
	var problems []string
	if sets < 0 || reps < 0 || rest < 0 {
		problems = append(problems, where+": sets, reps and rest must not be negative")
	}
	if weight != nil && *weight < 0 {
		problems = append(problems, where+": weight must not be negative")
	}
	return problems
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Import writes f to s. Exercises and routines are matched by name: existing
// rows are updated, new ones created. With dryRun nothing is written but the
// result still reports what would change.
func Import(ctx context.Context, s Store, f *File, dryRun bool) (Result, error) {
	var res Result
	ids := make(map[string]string)

	for _, e := range f.Exercises {
		existing, err := s.GetExerciseByName(ctx, strings.TrimSpace(e.Name))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return res, err
		}

		ex := &models.ExerciseTemplate{
			Name:               strings.TrimSpace(e.Name),
			DefaultSets:        orDefault(e.Sets, 3),
			DefaultReps:        orDefault(e.Reps, 10),
			DefaultRestSeconds: e.Rest,
			DefaultWeight:      e.Weight,
			Equipment:          e.Equipment,
			MuscleGroup:        e.MuscleGroup,
		}
		if existing != nil {
			ex.ID = existing.ID
			ex.CreatedAt = existing.CreatedAt
			res.ExercisesUpdated++
			if !dryRun {
				if err := s.UpdateExercise(ctx, ex); err != nil {
					return res, err
				}
			}
		} else {
			res.ExercisesCreated++
			if !dryRun {
				if err := s.CreateExercise(ctx, ex); err != nil {
					return res, err
				}
			}
		}
		ids[key(e.Name)] = ex.ID
	}

	for _, r := range f.Routines {
		routine := &models.Routine{Name: strings.TrimSpace(r.Name), Description: r.Description}
		for _, entry := range r.Exercises {
			id, ok := ids[key(entry.Name)]
			if !ok {
				existing, err := s.GetExerciseByName(ctx, strings.TrimSpace(entry.Name))
				if errors.Is(err, store.ErrNotFound) {
					return res, fmt.Errorf("routine %q: unknown exercise %q", r.Name, entry.Name)
				}
				if err != nil {
					return res, err
				}
				id = existing.ID
				ids[key(entry.Name)] = id
			}
			routine.Exercises = append(routine.Exercises, models.RoutineExercise{
				ExerciseID:  id,
				Sets:        entry.Sets,
				Reps:        entry.Reps,
				Weight:      entry.Weight,
				RestSeconds: entry.Rest,
			})
		}

		existing, err := s.GetRoutineByName(ctx, routine.Name)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return res, err
		}
		if existing != nil {
			routine.ID = existing.ID
			res.RoutinesUpdated++
			if !dryRun {
				if err := s.UpdateRoutine(ctx, routine); err != nil {
					return res, err
				}
			}
		} else {
			res.RoutinesCreated++
			if !dryRun {
				if err := s.CreateRoutine(ctx, routine); err != nil {
					return res, err
				}
			}
		}
	}
	return res, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

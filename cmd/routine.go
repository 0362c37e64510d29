package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joescharf/lift/internal/catalog"
	"github.com/joescharf/lift/internal/models"
	"github.com/joescharf/lift/internal/output"
	"github.com/joescharf/lift/internal/store"
)

var routineCmd = &cobra.Command{
	Use:     "routine",
	Aliases: []string{"routines", "r"},
	Short:   "Manage exercises and routines",
}

var routineImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import exercises and routines from a YAML file",
	Long: `Import exercises and routines from a YAML file. Entries are matched
by name: existing exercises and routines are updated, new ones created.

  exercises:
    - name: Bench Press
      sets: 3
      reps: 5
      rest: 180
      weight: 100
      equipment: barbell
      muscle_group: chest
  routines:
    - name: Upper A
      exercises:
        - name: Bench Press
          sets: 5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return routineImportRun(args[0])
	},
}

var routineListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List routines",
	RunE: func(cmd *cobra.Command, args []string) error {
		return routineListRun()
	},
}

var routineShowCmd = &cobra.Command{
	Use:   "show <name|id>",
	Short: "Show a routine's planned exercises",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return routineShowRun(args[0])
	},
}

var routineExercisesCmd = &cobra.Command{
	Use:   "exercises",
	Short: "List catalog exercises",
	RunE: func(cmd *cobra.Command, args []string) error {
		return routineExercisesRun()
	},
}

func init() {
	routineCmd.AddCommand(routineImportCmd)
	routineCmd.AddCommand(routineListCmd)
	routineCmd.AddCommand(routineShowCmd)
	routineCmd.AddCommand(routineExercisesCmd)
	rootCmd.AddCommand(routineCmd)
}

func routineImportRun(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()

	file, err := catalog.Parse(f)
	if err != nil {
		return err
	}

	s, err := getStore()
	if err != nil {
		return err
	}

	res, err := catalog.Import(context.Background(), s, file, dryRun)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}

	summary := fmt.Sprintf("exercises: %d created, %d updated; routines: %d created, %d updated",
		res.ExercisesCreated, res.ExercisesUpdated, res.RoutinesCreated, res.RoutinesUpdated)
	if dryRun {
		ui.DryRunMsg("Would import %s (%s)", path, summary)
		return nil
	}
	ui.Success("Imported %s (%s)", path, summary)
	return nil
}

func routineListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	routines, err := s.ListRoutines(context.Background())
	if err != nil {
		return err
	}
	if len(routines) == 0 {
		ui.Info("No routines. Import some with: lift routine import <file.yaml>")
		return nil
	}

	table := ui.Table([]string{"Name", "Exercises", "Description", "ID"})
	for _, r := range routines {
		_ = table.Append([]string{
			output.Cyan(r.Name),
			strconv.Itoa(len(r.Exercises)),
			truncate(r.Description, 40),
			r.ID,
		})
	}
	_ = table.Render()
	return nil
}

func routineShowRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	ctx := context.Background()
	r, err := resolveRoutine(ctx, s, ref)
	if err != nil {
		return err
	}
	tmpl, err := s.FetchTemplate(ctx, r.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s\n", output.Cyan(r.Name))
	if r.Description != "" {
		fmt.Fprintf(ui.Out, "  %s\n", r.Description)
	}
	fmt.Fprintf(ui.Out, "  ID:  %s\n\n", r.ID)

	table := ui.Table([]string{"#", "Exercise", "Sets", "Reps", "Weight", "Rest", "Muscle"})
	for i, te := range tmpl.Exercises {
		reps, weight := "-", "-"
		if len(te.Sets) > 0 {
			reps = strconv.Itoa(te.Sets[0].TargetReps)
			weight = output.Weight(te.Sets[0].TargetWeight)
		}
		_ = table.Append([]string{
			strconv.Itoa(i + 1),
			te.Exercise.Name,
			strconv.Itoa(len(te.Sets)),
			reps,
			weight,
			fmt.Sprintf("%ds", te.RestSeconds),
			te.Exercise.MuscleGroup,
		})
	}
	_ = table.Render()
	return nil
}

func routineExercisesRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	exercises, err := s.ListExercises(context.Background())
	if err != nil {
		return err
	}
	if len(exercises) == 0 {
		ui.Info("No exercises. Import some with: lift routine import <file.yaml>")
		return nil
	}

	table := ui.Table([]string{"Name", "Default", "Rest", "Equipment", "Muscle"})
	for _, e := range exercises {
		_ = table.Append([]string{
			e.Name,
			fmt.Sprintf("%dx%d @ %s", e.DefaultSets, e.DefaultReps, output.Weight(e.DefaultWeight)),
			fmt.Sprintf("%ds", e.DefaultRestSeconds),
			e.Equipment,
			e.MuscleGroup,
		})
	}
	_ = table.Render()
	return nil
}

// resolveRoutine looks a routine up by id first, then by name.
func resolveRoutine(ctx context.Context, s store.Store, ref string) (*models.Routine, error) {
	r, err := s.GetRoutine(ctx, ref)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	r, err = s.GetRoutineByName(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("routine %q not found (see 'lift routine list')", ref)
	}
	return r, err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

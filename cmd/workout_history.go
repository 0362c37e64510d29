package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/lift/internal/api"
	"github.com/joescharf/lift/internal/llm"
	"github.com/joescharf/lift/internal/models"
	"github.com/joescharf/lift/internal/output"
	"github.com/joescharf/lift/internal/stats"
	"github.com/joescharf/lift/internal/store"
)

var (
	historyLimit int
	historySince string
	historyAll   bool
	statsSince   string
)

// newRecapper builds the recap client, replaceable in tests.
var newRecapper = func(apiKey, model string) api.Recapper {
	return llm.NewClient(apiKey, model)
}

var workoutHistoryCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"log", "ls"},
	Short:   "List past workouts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return workoutHistoryRun()
	},
}

var workoutShowCmd = &cobra.Command{
	Use:   "show <id|last>",
	Short: "Show a past workout set by set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return workoutShowRun(args[0])
	},
}

var workoutStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Totals across finished workouts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return workoutStatsRun()
	},
}

var workoutRecapCmd = &cobra.Command{
	Use:   "recap <id|last>",
	Short: "Ask Claude for a short recap of a finished workout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return workoutRecapRun(args[0])
	},
}

func init() {
	workoutHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum workouts to list")
	workoutHistoryCmd.Flags().StringVar(&historySince, "since", "", "Only workouts started on or after this date (YYYY-MM-DD)")
	workoutHistoryCmd.Flags().BoolVarP(&historyAll, "all", "a", false, "Include abandoned and in-progress workouts")
	workoutStatsCmd.Flags().StringVar(&statsSince, "since", "", "Only workouts started on or after this date (YYYY-MM-DD)")

	workoutCmd.AddCommand(workoutHistoryCmd)
	workoutCmd.AddCommand(workoutShowCmd)
	workoutCmd.AddCommand(workoutStatsCmd)
	workoutCmd.AddCommand(workoutRecapCmd)
}

// parseDate parses a YYYY-MM-DD flag in local time. Empty means no bound.
func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", v)
	}
	return t, nil
}

func workoutHistoryRun() error {
	since, err := parseDate(historySince)
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}

	filter := store.WorkoutListFilter{OwnerID: currentOwner(), Since: since, Limit: historyLimit}
	if !historyAll {
		filter.Status = models.SessionStatusFinished
	}
	workouts, err := s.ListWorkouts(context.Background(), filter)
	if err != nil {
		return err
	}
	if len(workouts) == 0 {
		ui.Info("No workouts found")
		return nil
	}

	table := ui.Table([]string{"Date", "Workout", "Status", "Duration", "Sets", "Reps", "Volume", "ID"})
	for _, w := range workouts {
		sum := stats.Compute(w, time.Now())
		_ = table.Append([]string{
			w.StartedAt.Local().Format("2006-01-02 15:04"),
			workoutName(w),
			output.StatusColor(string(w.Status)),
			output.Clock(sum.Elapsed),
			fmt.Sprintf("%d/%d", sum.CompletedSets, sum.TotalPlannedSets),
			strconv.Itoa(sum.TotalReps),
			formatNumber(sum.TotalVolume),
			w.ID,
		})
	}
	_ = table.Render()
	return nil
}

// loadWorkout resolves a workout id, or "last" for the most recent
// finished workout of the current owner.
func loadWorkout(ctx context.Context, s store.Store, ref string) (*models.WorkoutSession, error) {
	if ref != "last" {
		return s.GetWorkout(ctx, ref)
	}
	ws, err := s.ListWorkouts(ctx, store.WorkoutListFilter{
		OwnerID: currentOwner(),
		Status:  models.SessionStatusFinished,
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(ws) == 0 {
		return nil, fmt.Errorf("no finished workouts yet")
	}
	return ws[0], nil
}

func workoutShowRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	w, err := loadWorkout(context.Background(), s, ref)
	if err != nil {
		return err
	}

	if !w.Status.Terminal() {
		printLiveWorkout(w)
		return nil
	}
	sum := stats.Compute(w, time.Now())
	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(workoutName(w)), output.StatusColor(string(w.Status)))
	fmt.Fprintf(ui.Out, "  ID:        %s\n", w.ID)
	fmt.Fprintf(ui.Out, "  Date:      %s\n", w.StartedAt.Local().Format("2006-01-02 15:04"))
	printSummary(sum)
	fmt.Fprintln(ui.Out)
	printSets(w)
	return nil
}

func printSummary(sum models.Summary) {
	fmt.Fprintf(ui.Out, "  Duration:  %s\n", output.Clock(sum.Elapsed))
	fmt.Fprintf(ui.Out, "  Sets:      %d completed, %d skipped of %d (%s)\n",
		sum.CompletedSets, sum.SkippedSets, sum.TotalPlannedSets, output.ProgressColor(sum.CompletionPercent))
	if sum.PendingSets > 0 && sum.Final {
		fmt.Fprintf(ui.Out, "  Not done:  %d sets\n", sum.PendingSets)
	}
	fmt.Fprintf(ui.Out, "  Reps:      %d\n", sum.TotalReps)
	fmt.Fprintf(ui.Out, "  Volume:    %s\n", formatNumber(sum.TotalVolume))
	fmt.Fprintf(ui.Out, "  Rested:    %s\n", output.Clock(time.Duration(sum.RestSeconds)*time.Second))
}

func workoutStatsRun() error {
	since, err := parseDate(statsSince)
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}

	workouts, err := s.ListWorkouts(context.Background(), store.WorkoutListFilter{
		OwnerID: currentOwner(),
		Status:  models.SessionStatusFinished,
		Since:   since,
	})
	if err != nil {
		return err
	}
	h := stats.History(workouts)

	label := "all time"
	if !since.IsZero() {
		label = "since " + since.Format(time.DateOnly)
	}
	fmt.Fprintf(ui.Out, "%s (%s)\n", output.Cyan("Workout stats"), label)
	fmt.Fprintf(ui.Out, "  Workouts:  %d\n", h.TotalWorkouts)
	fmt.Fprintf(ui.Out, "  Time:      %s\n", (time.Duration(h.TotalMinutes) * time.Minute).String())
	fmt.Fprintf(ui.Out, "  Sets:      %d\n", h.TotalSets)
	fmt.Fprintf(ui.Out, "  Reps:      %d\n", h.TotalReps)
	fmt.Fprintf(ui.Out, "  Volume:    %s\n", formatNumber(h.TotalVolume))
	return nil
}

func workoutRecapRun(ref string) error {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		return fmt.Errorf("anthropic.api_key is not set (export LIFT_ANTHROPIC_API_KEY or run 'lift config edit')")
	}
	s, err := getStore()
	if err != nil {
		return err
	}

	ctx := context.Background()
	w, err := loadWorkout(ctx, s, ref)
	if err != nil {
		return err
	}
	if w.Status != models.SessionStatusFinished {
		return fmt.Errorf("workout %s is %s; only finished workouts can be recapped", w.ID, w.Status)
	}

	if dryRun {
		ui.DryRunMsg("Would request a recap of %s from %s", w.ID, viper.GetString("anthropic.model"))
		return nil
	}

	ui.VerboseLog("Requesting recap from %s", viper.GetString("anthropic.model"))
	recap, err := newRecapper(apiKey, viper.GetString("anthropic.model")).Recap(ctx, w, stats.Compute(w, time.Now()))
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s\n", output.Cyan(recap.Headline))
	for _, h := range recap.Highlights {
		fmt.Fprintf(ui.Out, "  - %s\n", h)
	}
	if recap.Suggestion != "" {
		fmt.Fprintf(ui.Out, "\n  Next time: %s\n", recap.Suggestion)
	}
	return nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/lift/internal/models"
	"github.com/joescharf/lift/internal/output"
	"github.com/joescharf/lift/internal/stats"
	"github.com/joescharf/lift/internal/store"
	"github.com/joescharf/lift/internal/workout"
)

// Flags shared by the set commands. Exercise and set numbers are 1-based on
// the command line; zero means the current cursor.
var (
	workoutExercise int
	workoutSet      int
	workoutReps     int
	workoutWeight   float64
	noteDropSet     bool
	noteFailure     bool
)

var workoutCmd = &cobra.Command{
	Use:     "workout",
	Aliases: []string{"w"},
	Short:   "Run and review workouts",
	Long: `Run a workout set by set.

Running bare 'lift workout' is the same as 'lift workout status'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return workoutStatusRun()
	},
}

var workoutStartCmd = &cobra.Command{
	Use:   "start <routine>",
	Short: "Start a workout from a routine (name or id)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return workoutStartRun(args[0])
	},
}

var workoutStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the workout in progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		return workoutStatusRun()
	},
}

var workoutCompleteCmd = &cobra.Command{
	Use:     "complete",
	Aliases: []string{"done", "c"},
	Short:   "Complete a set (default: the current one, at its targets)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return workoutCompleteRun(cmd)
	},
}

var workoutUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Correct the reps or weight of a completed set",
	RunE: func(cmd *cobra.Command, args []string) error {
		return workoutUpdateRun(cmd)
	},
}

var workoutSkipCmd = &cobra.Command{
	Use:   "skip",
	Short: "Skip a set (default: the current one)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return workoutSkipRun()
	},
}

var workoutReopenCmd = &cobra.Command{
	Use:   "reopen",
	Short: "Return a completed or skipped set to pending",
	RunE: func(cmd *cobra.Command, args []string) error {
		return workoutReopenRun()
	},
}

var workoutNoteCmd = &cobra.Command{
	Use:   "note [text]",
	Short: "Annotate a set with a note and drop-set/failure flags",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		note := ""
		if len(args) == 1 {
			note = args[0]
		}
		return workoutNoteRun(note)
	},
}

var workoutRestCmd = &cobra.Command{
	Use:   "rest [seconds]",
	Short: "Start a rest timer (default: rest.default_seconds)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seconds := viper.GetInt("rest.default_seconds")
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid rest length %q: must be a positive number of seconds", args[0])
			}
			seconds = n
		}
		return workoutRestRun(seconds)
	},
}

var workoutSkipRestCmd = &cobra.Command{
	Use:   "skip-rest",
	Short: "End the current rest early",
	RunE: func(cmd *cobra.Command, args []string) error {
		return workoutSkipRestRun()
	},
}

var workoutTimerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Count down the current rest in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		return workoutTimerRun()
	},
}

var workoutSelectCmd = &cobra.Command{
	Use:   "select <exercise>",
	Short: "Jump to an exercise by number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid exercise number %q", args[0])
		}
		return workoutSelectRun(n - 1)
	},
}

var workoutFinishCmd = &cobra.Command{
	Use:   "finish",
	Short: "Finish the workout and record it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return workoutFinishRun()
	},
}

var workoutAbandonCmd = &cobra.Command{
	Use:   "abandon",
	Short: "Abandon the workout without counting it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return workoutAbandonRun()
	},
}

func init() {
	for _, c := range []*cobra.Command{workoutCompleteCmd, workoutUpdateCmd, workoutSkipCmd, workoutReopenCmd, workoutNoteCmd} {
		c.Flags().IntVarP(&workoutExercise, "exercise", "e", 0, "Exercise number (default: current)")
		c.Flags().IntVarP(&workoutSet, "set", "s", 0, "Set number (default: current, or the exercise's first pending set)")
	}
	for _, c := range []*cobra.Command{workoutCompleteCmd, workoutUpdateCmd} {
		c.Flags().IntVarP(&workoutReps, "reps", "r", 0, "Reps performed (default: target)")
		c.Flags().Float64VarP(&workoutWeight, "weight", "w", 0, "Weight used (default: target)")
	}
	workoutNoteCmd.Flags().BoolVar(&noteDropSet, "drop", false, "Mark as a drop set")
	workoutNoteCmd.Flags().BoolVar(&noteFailure, "failure", false, "Mark as taken to failure")

	workoutCmd.AddCommand(workoutStartCmd)
	workoutCmd.AddCommand(workoutStatusCmd)
	workoutCmd.AddCommand(workoutCompleteCmd)
	workoutCmd.AddCommand(workoutUpdateCmd)
	workoutCmd.AddCommand(workoutSkipCmd)
	workoutCmd.AddCommand(workoutReopenCmd)
	workoutCmd.AddCommand(workoutNoteCmd)
	workoutCmd.AddCommand(workoutRestCmd)
	workoutCmd.AddCommand(workoutSkipRestCmd)
	workoutCmd.AddCommand(workoutTimerCmd)
	workoutCmd.AddCommand(workoutSelectCmd)
	workoutCmd.AddCommand(workoutFinishCmd)
	workoutCmd.AddCommand(workoutAbandonCmd)
	rootCmd.AddCommand(workoutCmd)
}

// withManager holds the owner's lock for the duration of fn and persists
// every session fn touched before releasing it.
func withManager(fn func(ctx context.Context, m *workout.Manager, owner string) error) error {
	ctx := context.Background()
	owner := currentOwner()

	release, err := acquireOwnerLock(owner)
	if err != nil {
		return err
	}
	defer release()

	m, err := getManager()
	if err != nil {
		return err
	}

	ferr := fn(ctx, m, owner)
	if err := m.Close(ctx); err != nil {
		if ferr == nil {
			return fmt.Errorf("save workout: %w", err)
		}
		logger.Warn("workout save failed", "error", err)
	}
	return ferr
}

var errNoWorkout = errors.New("no workout in progress (start one with 'lift workout start <routine>')")

// withSession resumes the owner's workout in progress and runs fn against it.
func withSession(fn func(ctx context.Context, sess *workout.Session) error) error {
	return withManager(func(ctx context.Context, m *workout.Manager, owner string) error {
		sess, err := m.Resume(ctx, owner)
		if errors.Is(err, workout.ErrNoActiveSession) {
			return errNoWorkout
		}
		if err != nil {
			return err
		}
		return fn(ctx, sess)
	})
}

func workoutStartRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	return withManager(func(ctx context.Context, m *workout.Manager, owner string) error {
		r, err := resolveRoutine(ctx, s, ref)
		if err != nil {
			return err
		}

		stale, err := m.Recover(ctx, owner, viper.GetDuration("workout.stale_after"))
		if err != nil {
			return err
		}
		if stale != nil {
			ui.Warning("Abandoned stale workout %s (last activity %s)", stale.ID, stale.UpdatedAt.Local().Format(time.DateTime))
		}

		sess, err := m.Start(ctx, owner, r.ID)
		if errors.Is(err, workout.ErrSessionActive) {
			return fmt.Errorf("%w; finish or abandon it first", err)
		}
		if err != nil {
			return err
		}

		if dryRun {
			ui.DryRunMsg("Would start workout %s", r.Name)
		} else {
			ui.Success("Started %s", output.Cyan(r.Name))
		}
		printSnapshot(sess.State())
		return nil
	})
}

func workoutStatusRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	w, err := s.LoadActiveWorkout(context.Background(), currentOwner())
	if err != nil {
		return err
	}
	if w == nil {
		ui.Info("No workout in progress")
		return nil
	}

	printLiveWorkout(w)
	if idle := time.Since(w.UpdatedAt); idle >= viper.GetDuration("workout.stale_after") {
		fmt.Fprintln(ui.Out)
		ui.Warning("Untouched for %s; the next 'lift workout start' abandons it", idle.Round(time.Minute))
	}
	return nil
}

// pickSet resolves the --exercise/--set flags against the session cursor.
// With only --exercise given, the exercise's first pending set is used.
func pickSet(snap workout.Snapshot) (exercise, set int, err error) {
	cur := snap.Workout.Cursor
	exercise, set = cur.Exercise, cur.Set
	if workoutExercise > 0 {
		exercise = workoutExercise - 1
		if exercise >= len(snap.Workout.Exercises) {
			return 0, 0, fmt.Errorf("%w: exercise %d (workout has %d)", workout.ErrInvalidCursor, workoutExercise, len(snap.Workout.Exercises))
		}
		set = 0
		for i, r := range snap.Workout.Exercises[exercise].Sets {
			if r.Status == models.SetStatusPending {
				set = i
				break
			}
		}
	}
	if workoutSet > 0 {
		set = workoutSet - 1
	}
	return exercise, set, nil
}

// setLabel names a set for messages, e.g. "Bench Press set 2".
func setLabel(snap workout.Snapshot, exercise, set int) string {
	if exercise < 0 || exercise >= len(snap.Workout.Exercises) {
		return fmt.Sprintf("exercise %d set %d", exercise+1, set+1)
	}
	return fmt.Sprintf("%s set %d", snap.Workout.Exercises[exercise].Name, set+1)
}

// setValues returns the set's targets overridden by any --reps/--weight flags.
func setValues(cmd *cobra.Command, sess *workout.Session, exercise, set int) (int, float64, error) {
	reps, weight, err := sess.Target(exercise, set)
	if err != nil {
		return 0, 0, err
	}
	if cmd.Flags().Changed("reps") {
		reps = workoutReps
	}
	if cmd.Flags().Changed("weight") {
		weight = workoutWeight
	}
	return reps, weight, nil
}

// endRest cuts a running rest short: moving on to the next set from the
// command line means the rest is over.
func endRest(sess *workout.Session) error {
	if sess.Status() != models.SessionStatusResting {
		return nil
	}
	ui.VerboseLog("Ending rest early")
	if err := sess.SkipRest(); err != nil && !errors.Is(err, workout.ErrInvalidState) {
		return err
	}
	return nil
}

func workoutCompleteRun(cmd *cobra.Command) error {
	return withSession(func(ctx context.Context, sess *workout.Session) error {
		if err := endRest(sess); err != nil {
			return err
		}
		snap := sess.State()
		ex, set, err := pickSet(snap)
		if err != nil {
			return err
		}
		reps, weight, err := setValues(cmd, sess, ex, set)
		if err != nil {
			return err
		}
		if err := sess.CompleteSet(ex, set, reps, weight); err != nil {
			return err
		}
		ui.Success("Completed %s: %d x %s", setLabel(snap, ex, set), reps, formatNumber(weight))
		printNext(sess.State())
		return nil
	})
}

func workoutUpdateRun(cmd *cobra.Command) error {
	if !cmd.Flags().Changed("reps") && !cmd.Flags().Changed("weight") {
		return fmt.Errorf("nothing to update: pass --reps and/or --weight")
	}
	if workoutExercise == 0 && workoutSet == 0 {
		return fmt.Errorf("pass --exercise and --set to pick the set to correct")
	}
	return withSession(func(ctx context.Context, sess *workout.Session) error {
		snap := sess.State()
		ex, set, err := pickSet(snap)
		if err != nil {
			return err
		}
		reps, weight, err := setValues(cmd, sess, ex, set)
		if err != nil {
			return err
		}
		rec := snap.Workout.Exercises[ex].Sets
		if set >= 0 && set < len(rec) && rec[set].Status == models.SetStatusCompleted {
			if !cmd.Flags().Changed("reps") && rec[set].ActualReps != nil {
				reps = *rec[set].ActualReps
			}
			if !cmd.Flags().Changed("weight") && rec[set].ActualWeight != nil {
				weight = *rec[set].ActualWeight
			}
		}
		if err := sess.UpdateSet(ex, set, reps, weight); err != nil {
			return err
		}
		ui.Success("Updated %s: %d x %s", setLabel(snap, ex, set), reps, formatNumber(weight))
		return nil
	})
}

func workoutSkipRun() error {
	return withSession(func(ctx context.Context, sess *workout.Session) error {
		if err := endRest(sess); err != nil {
			return err
		}
		snap := sess.State()
		ex, set, err := pickSet(snap)
		if err != nil {
			return err
		}
		if err := sess.SkipSet(ex, set); err != nil {
			return err
		}
		ui.Info("Skipped %s", setLabel(snap, ex, set))
		printNext(sess.State())
		return nil
	})
}

func workoutReopenRun() error {
	return withSession(func(ctx context.Context, sess *workout.Session) error {
		snap := sess.State()
		ex, set, err := pickSet(snap)
		if err != nil {
			return err
		}
		if err := sess.ReopenSet(ex, set); err != nil {
			return err
		}
		ui.Success("Reopened %s", setLabel(snap, ex, set))
		return nil
	})
}

func workoutNoteRun(note string) error {
	return withSession(func(ctx context.Context, sess *workout.Session) error {
		snap := sess.State()
		ex, set, err := pickSet(snap)
		if err != nil {
			return err
		}
		if err := sess.AnnotateSet(ex, set, note, noteDropSet, noteFailure); err != nil {
			return err
		}
		ui.Success("Annotated %s", setLabel(snap, ex, set))
		return nil
	})
}

func workoutRestRun(seconds int) error {
	return withSession(func(ctx context.Context, sess *workout.Session) error {
		if err := sess.StartRest(seconds); err != nil {
			return err
		}
		ui.Info("Resting %s (count down with 'lift workout timer')", output.Clock(time.Duration(seconds)*time.Second))
		return nil
	})
}

func workoutSkipRestRun() error {
	return withSession(func(ctx context.Context, sess *workout.Session) error {
		if err := sess.SkipRest(); err != nil {
			return err
		}
		ui.Info("Rest skipped")
		printNext(sess.State())
		return nil
	})
}

// workoutTimerRun holds the session until the current rest ends, drawing the
// countdown from the session's rest_tick events. Ctrl-C leaves the rest
// running.
func workoutTimerRun() error {
	return withSession(func(ctx context.Context, sess *workout.Session) error {
		events, cancel := sess.Subscribe()
		defer cancel()

		snap := sess.State()
		if snap.Workout.Status != models.SessionStatusResting {
			ui.Info("Not resting")
			printNext(snap)
			return nil
		}

		ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
		defer stop()

		fmt.Fprintf(ui.Out, "\rRest %s ", output.Clock(time.Duration(snap.RestRemaining)*time.Second))
		for {
			select {
			case <-ctx.Done():
				fmt.Fprintln(ui.Out)
				return nil
			case e, ok := <-events:
				if !ok {
					fmt.Fprintln(ui.Out)
					return nil
				}
				switch e.Kind {
				case workout.EventRestTick:
					fmt.Fprintf(ui.Out, "\rRest %s ", output.Clock(time.Duration(e.SecondsRemaining)*time.Second))
				case workout.EventRestFinished:
					fmt.Fprintln(ui.Out)
					ui.Success("Rest over")
					printNext(sess.State())
					return nil
				}
			}
		}
	})
}

func workoutSelectRun(exercise int) error {
	return withSession(func(ctx context.Context, sess *workout.Session) error {
		if err := sess.SelectExercise(exercise); err != nil {
			return err
		}
		printNext(sess.State())
		return nil
	})
}

func workoutFinishRun() error {
	return withManager(func(ctx context.Context, m *workout.Manager, owner string) error {
		sess, err := m.Latest(ctx, owner)
		if errors.Is(err, workout.ErrNoActiveSession) {
			return showAlreadyFinished(ctx, owner)
		}
		if err != nil {
			return err
		}
		sum, err := sess.Finish()
		if err != nil {
			return err
		}
		if err := sess.Flush(ctx); err != nil {
			return fmt.Errorf("workout finished but not saved: %w", err)
		}
		if dryRun {
			ui.DryRunMsg("Would finish workout %s", sess.ID())
		} else {
			ui.Success("Workout finished")
		}
		printSummary(sum)
		return nil
	})
}

// showAlreadyFinished handles a repeated finish: when the owner's latest
// workout is already finished its summary is shown again.
func showAlreadyFinished(ctx context.Context, owner string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ws, err := s.ListWorkouts(ctx, store.WorkoutListFilter{OwnerID: owner, Limit: 1})
	if err != nil {
		return err
	}
	if len(ws) == 0 || ws[0].Status != models.SessionStatusFinished {
		return errNoWorkout
	}
	ui.Info("Workout %s already finished", ws[0].ID)
	printSummary(stats.Compute(ws[0], time.Now()))
	return nil
}

func workoutAbandonRun() error {
	return withSession(func(ctx context.Context, sess *workout.Session) error {
		if err := sess.Abandon(); err != nil {
			return err
		}
		if err := sess.Flush(ctx); err != nil {
			return fmt.Errorf("workout abandoned but not saved: %w", err)
		}
		if dryRun {
			ui.DryRunMsg("Would abandon workout %s", sess.ID())
			return nil
		}
		ui.Warning("Workout %s abandoned", sess.ID())
		return nil
	})
}

// printLiveWorkout renders a persisted in-progress workout as of now.
func printLiveWorkout(w *models.WorkoutSession) {
	now := time.Now()
	var rest time.Duration
	if w.Status == models.SessionStatusResting && w.RestStartedAt != nil {
		rest = w.RestStartedAt.Add(time.Duration(w.RestDuration) * time.Second).Sub(now)
	}
	printWorkout(w, stats.Compute(w, now), rest)
}

func printSnapshot(snap workout.Snapshot) {
	printWorkout(snap.Workout, snap.Summary, time.Duration(snap.RestRemaining)*time.Second)
}

func printWorkout(w *models.WorkoutSession, sum models.Summary, rest time.Duration) {
	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(workoutName(w)), output.StatusColor(string(w.Status)))
	fmt.Fprintf(ui.Out, "  ID:        %s\n", w.ID)
	fmt.Fprintf(ui.Out, "  Started:   %s\n", w.StartedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(ui.Out, "  Elapsed:   %s\n", output.Clock(sum.Elapsed))
	progress := fmt.Sprintf("%s %s  %d/%d sets", output.ProgressBar(sum.CompletionPercent, 20),
		output.ProgressColor(sum.CompletionPercent), sum.CompletedSets, sum.TotalPlannedSets)
	if sum.SkippedSets > 0 {
		progress += fmt.Sprintf(" (%d skipped)", sum.SkippedSets)
	}
	fmt.Fprintf(ui.Out, "  Progress:  %s\n", progress)
	fmt.Fprintf(ui.Out, "  Volume:    %s (%d reps)\n", formatNumber(sum.TotalVolume), sum.TotalReps)
	if w.Status == models.SessionStatusResting {
		if rest > 0 {
			fmt.Fprintf(ui.Out, "  Rest:      %s remaining\n", output.Yellow(output.Clock(rest)))
		} else {
			fmt.Fprintf(ui.Out, "  Rest:      %s\n", output.Green("over"))
		}
	}
	if next := nextLine(w); next != "" {
		fmt.Fprintf(ui.Out, "  Next:      %s\n", next)
	}
	fmt.Fprintln(ui.Out)
	printSets(w)
}

// printSets renders every set record, marking the cursor on live workouts.
func printSets(w *models.WorkoutSession) {
	table := ui.Table([]string{"", "#", "Exercise", "Set", "Target", "Actual", "Status", "Note"})
	for i, ex := range w.Exercises {
		for j, r := range ex.Sets {
			marker := ""
			if !w.Status.Terminal() && w.Cursor.Exercise == i && w.Cursor.Set == j {
				marker = ">"
			}
			name := ""
			if j == 0 {
				name = ex.Name
			}
			_ = table.Append([]string{
				marker,
				strconv.Itoa(i + 1),
				name,
				strconv.Itoa(j + 1),
				fmt.Sprintf("%d x %s", r.TargetReps, output.Weight(r.TargetWeight)),
				actualText(r),
				output.StatusColor(string(r.Status)),
				noteText(r),
			})
		}
	}
	_ = table.Render()
}

// printNext prints a one-line pointer to what comes next in a live workout.
func printNext(snap workout.Snapshot) {
	w := snap.Workout
	line := nextLine(w)
	if w.Status == models.SessionStatusResting && snap.RestRemaining > 0 {
		line = fmt.Sprintf("rest %s, then %s", output.Clock(time.Duration(snap.RestRemaining)*time.Second), line)
	}
	if line == "" {
		return
	}
	sum := snap.Summary
	fmt.Fprintf(ui.Out, "  Next: %s  [%d/%d sets, %s]\n", line, sum.CompletedSets, sum.TotalPlannedSets,
		output.ProgressColor(sum.CompletionPercent))
}

// nextLine describes the set the lifter does next: the cursor set, or while
// resting on a finished set, the first pending set after it.
func nextLine(w *models.WorkoutSession) string {
	if w.Status.Terminal() {
		return ""
	}
	ex, set, ok := nextPendingSet(w)
	if !ok {
		return "all sets done ('lift workout finish')"
	}
	e := w.Exercises[ex]
	r := e.Sets[set]
	return fmt.Sprintf("%s set %d/%d: %d x %s", e.Name, set+1, len(e.Sets), r.TargetReps, output.Weight(r.TargetWeight))
}

// nextPendingSet scans forward from the cursor, wrapping once.
func nextPendingSet(w *models.WorkoutSession) (int, int, bool) {
	type pos struct{ ex, set int }
	var order []pos
	for i, ex := range w.Exercises {
		for j := range ex.Sets {
			order = append(order, pos{i, j})
		}
	}
	start := 0
	for i, p := range order {
		if p.ex == w.Cursor.Exercise && p.set == w.Cursor.Set {
			start = i
			break
		}
	}
	for k := range order {
		p := order[(start+k)%len(order)]
		if w.Exercises[p.ex].Sets[p.set].Status == models.SetStatusPending {
			return p.ex, p.set, true
		}
	}
	return 0, 0, false
}

func actualText(r models.SetRecord) string {
	if r.Status != models.SetStatusCompleted || r.ActualReps == nil {
		return "-"
	}
	return fmt.Sprintf("%d x %s", *r.ActualReps, output.Weight(r.ActualWeight))
}

func noteText(r models.SetRecord) string {
	var parts []string
	if r.DropSet {
		parts = append(parts, "[drop]")
	}
	if r.Failure {
		parts = append(parts, "[failure]")
	}
	if r.Reopened > 0 {
		parts = append(parts, fmt.Sprintf("[reopened x%d]", r.Reopened))
	}
	if r.Note != "" {
		parts = append(parts, truncate(r.Note, 40))
	}
	return strings.Join(parts, " ")
}

func workoutName(w *models.WorkoutSession) string {
	if w.RoutineName == "" {
		return "Ad-hoc workout"
	}
	return w.RoutineName
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

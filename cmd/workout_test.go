package cmd

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/lift/internal/api"
	"github.com/joescharf/lift/internal/llm"
	"github.com/joescharf/lift/internal/models"
	"github.com/joescharf/lift/internal/store"
)

// workoutEnv is testEnv with the test catalog imported and set flags reset.
func workoutEnv(t *testing.T) string {
	t.Helper()
	dir := testEnv(t)
	importTestCatalog(t, dir)
	resetOut()
	setFlags(0, 0)
	t.Cleanup(func() { setFlags(0, 0) })
	return dir
}

func setFlags(exercise, set int) {
	workoutExercise, workoutSet = exercise, set
	noteDropSet, noteFailure = false, false
}

// valuesCmd returns a command carrying the --reps/--weight flags, set from
// flags.
func valuesCmd(t *testing.T, flags map[string]string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{}
	c.Flags().IntVarP(&workoutReps, "reps", "r", 0, "")
	c.Flags().Float64VarP(&workoutWeight, "weight", "w", 0, "")
	for k, v := range flags {
		require.NoError(t, c.Flags().Set(k, v))
	}
	return c
}

func activeWorkout(t *testing.T) *models.WorkoutSession {
	t.Helper()
	s, err := getStore()
	require.NoError(t, err)
	w, err := s.LoadActiveWorkout(context.Background(), currentOwner())
	require.NoError(t, err)
	return w
}

func TestWorkoutLifecycle_CLI(t *testing.T) {
	workoutEnv(t)

	require.NoError(t, workoutStartRun("Upper A"))
	assert.Contains(t, outString(), "Started")
	w := activeWorkout(t)
	require.NotNil(t, w)
	assert.Equal(t, "tester", w.OwnerID)
	assert.Equal(t, models.SessionStatusActive, w.Status)

	// Defaults to the cursor and the set's targets.
	resetOut()
	require.NoError(t, workoutCompleteRun(valuesCmd(t, nil)))
	assert.Contains(t, outString(), "Completed Bench Press set 1: 5 x 100")
	w = activeWorkout(t)
	assert.Equal(t, models.SessionStatusResting, w.Status)
	assert.Equal(t, models.Cursor{Exercise: 0, Set: 0}, w.Cursor)
	assert.Contains(t, outString(), "then Bench Press set 2/2: 5 x 100")

	// Completing the next set ends the rest first.
	resetOut()
	require.NoError(t, workoutCompleteRun(valuesCmd(t, map[string]string{"reps": "4"})))
	assert.Contains(t, outString(), "Completed Bench Press set 2: 4 x 100")

	resetOut()
	require.NoError(t, workoutSkipRun())
	assert.Contains(t, outString(), "Skipped Plank set 1")

	resetOut()
	require.NoError(t, workoutStatusRun())
	out := outString()
	assert.Contains(t, out, "Upper A")
	assert.Contains(t, out, "2/3 sets (1 skipped)")
	assert.Contains(t, out, "900")

	resetOut()
	require.NoError(t, workoutFinishRun())
	assert.Contains(t, outString(), "Workout finished")
	assert.Contains(t, outString(), "2 completed, 1 skipped of 3")
	assert.Nil(t, activeWorkout(t))

	// A repeated finish shows the same summary instead of failing.
	resetOut()
	require.NoError(t, workoutFinishRun())
	assert.Contains(t, outString(), "already finished")
	assert.Contains(t, outString(), "2 completed, 1 skipped of 3")

	resetOut()
	require.NoError(t, workoutHistoryRun())
	assert.Contains(t, outString(), "Upper A")
	assert.Contains(t, outString(), "finished")

	resetOut()
	require.NoError(t, workoutStatsRun())
	assert.Contains(t, outString(), "Workouts:  1")
	assert.Contains(t, outString(), "Volume:    900")

	resetOut()
	require.NoError(t, workoutShowRun("last"))
	assert.Contains(t, outString(), "Bench Press")
	assert.Contains(t, outString(), "4 x 100")
}

func TestWorkoutStart_Errors(t *testing.T) {
	workoutEnv(t)

	err := workoutStartRun("Legs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	require.NoError(t, workoutStartRun("Upper A"))
	err = workoutStartRun("Upper A")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "finish or abandon it first")
}

func TestWorkoutStart_AbandonsStale(t *testing.T) {
	workoutEnv(t)
	require.NoError(t, workoutStartRun("Upper A"))
	first := activeWorkout(t)

	viper.Set("workout.stale_after", "1ns")
	time.Sleep(time.Millisecond)
	require.NoError(t, workoutStartRun("Upper A"))
	assert.Contains(t, errString(), "Abandoned stale workout "+first.ID)

	s, err := getStore()
	require.NoError(t, err)
	old, err := s.GetWorkout(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusAbandoned, old.Status)
	assert.NotEqual(t, first.ID, activeWorkout(t).ID)
}

func TestWorkoutCommands_NoActiveWorkout(t *testing.T) {
	workoutEnv(t)

	require.NoError(t, workoutStatusRun())
	assert.Contains(t, outString(), "No workout in progress")

	for name, run := range map[string]func() error{
		"skip":     workoutSkipRun,
		"finish":   workoutFinishRun,
		"abandon":  workoutAbandonRun,
		"skipRest": workoutSkipRestRun,
	} {
		t.Run(name, func(t *testing.T) {
			err := run()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "no workout in progress")
		})
	}
}

func TestWorkoutCommands_LockHeld(t *testing.T) {
	workoutEnv(t)
	require.NoError(t, workoutStartRun("Upper A"))

	l := ownerLock(currentOwner())
	require.NoError(t, os.WriteFile(l.Path, []byte("1\n"), 0o644))
	t.Cleanup(func() { _ = os.Remove(l.Path) })
	if _, running := l.Holder(); !running {
		t.Skip("pid 1 not visible to this process")
	}

	err := workoutSkipRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lift serve")
}

func TestWorkoutSetFlags(t *testing.T) {
	workoutEnv(t)
	require.NoError(t, workoutStartRun("Upper A"))

	// --exercise alone picks that exercise's first pending set.
	setFlags(2, 0)
	require.NoError(t, workoutCompleteRun(valuesCmd(t, map[string]string{"reps": "1", "weight": "20"})))
	w := activeWorkout(t)
	plank := w.Exercises[1].Sets[0]
	assert.Equal(t, models.SetStatusCompleted, plank.Status)
	require.NotNil(t, plank.ActualWeight)
	assert.Equal(t, 20.0, *plank.ActualWeight)

	setFlags(3, 0)
	err := workoutSkipRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exercise 3 (workout has 2)")

	// Annotate, then correct the weight; reps are kept.
	setFlags(2, 1)
	noteDropSet = true
	require.NoError(t, workoutNoteRun("held 60s"))
	require.NoError(t, workoutUpdateRun(valuesCmd(t, map[string]string{"weight": "25"})))
	w = activeWorkout(t)
	plank = w.Exercises[1].Sets[0]
	assert.Equal(t, "held 60s", plank.Note)
	assert.True(t, plank.DropSet)
	assert.Equal(t, 1, *plank.ActualReps)
	assert.Equal(t, 25.0, *plank.ActualWeight)

	require.NoError(t, workoutReopenRun())
	w = activeWorkout(t)
	assert.Equal(t, models.SetStatusPending, w.Exercises[1].Sets[0].Status)
}

func TestWorkoutUpdate_NeedsValuesAndSet(t *testing.T) {
	workoutEnv(t)

	err := workoutUpdateRun(valuesCmd(t, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to update")

	err = workoutUpdateRun(valuesCmd(t, map[string]string{"reps": "3"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--exercise and --set")
}

func TestWorkoutRestAndSelect(t *testing.T) {
	workoutEnv(t)
	require.NoError(t, workoutStartRun("Upper A"))

	require.NoError(t, workoutRestRun(30))
	w := activeWorkout(t)
	assert.Equal(t, models.SessionStatusResting, w.Status)
	assert.Equal(t, 30, w.RestDuration)

	require.NoError(t, workoutSkipRestRun())
	assert.Equal(t, models.SessionStatusActive, activeWorkout(t).Status)

	resetOut()
	require.NoError(t, workoutSelectRun(1))
	assert.Contains(t, outString(), "Plank set 1/1")
	assert.Equal(t, models.Cursor{Exercise: 1, Set: 0}, activeWorkout(t).Cursor)

	err := workoutSelectRun(5)
	require.Error(t, err)
}

func TestWorkoutTimer_NotResting(t *testing.T) {
	workoutEnv(t)
	require.NoError(t, workoutStartRun("Upper A"))

	resetOut()
	require.NoError(t, workoutTimerRun())
	assert.Contains(t, outString(), "Not resting")
}

func TestWorkoutAbandon(t *testing.T) {
	workoutEnv(t)
	require.NoError(t, workoutStartRun("Upper A"))
	id := activeWorkout(t).ID

	require.NoError(t, workoutAbandonRun())
	assert.Nil(t, activeWorkout(t))

	s, err := getStore()
	require.NoError(t, err)
	w, err := s.GetWorkout(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusAbandoned, w.Status)

	// Abandoned workouts only show up with --all.
	resetOut()
	require.NoError(t, workoutHistoryRun())
	assert.Contains(t, outString(), "No workouts found")
	historyAll = true
	t.Cleanup(func() { historyAll = false })
	resetOut()
	require.NoError(t, workoutHistoryRun())
	assert.Contains(t, outString(), "abandoned")
}

func TestWorkout_DryRunLeavesStoreUntouched(t *testing.T) {
	workoutEnv(t)
	dryRun = true
	ui.DryRun = true

	require.NoError(t, workoutStartRun("Upper A"))
	assert.Nil(t, activeWorkout(t))

	s, err := getStore()
	require.NoError(t, err)
	ws, err := s.ListWorkouts(context.Background(), store.WorkoutListFilter{})
	require.NoError(t, err)
	assert.Empty(t, ws)
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local), got)

	got, err = parseDate("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = parseDate("yesterday")
	assert.Error(t, err)
}

type stubRecapper struct {
	recap *llm.Recap
	calls int
}

func (s *stubRecapper) Recap(context.Context, *models.WorkoutSession, models.Summary) (*llm.Recap, error) {
	s.calls++
	return s.recap, nil
}

func TestWorkoutRecap(t *testing.T) {
	workoutEnv(t)

	err := workoutRecapRun("last")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.api_key")

	viper.Set("anthropic.api_key", "sk-test")
	stub := &stubRecapper{recap: &llm.Recap{
		Headline:   "Solid press day",
		Highlights: []string{"9 reps at 100"},
		Suggestion: "Add 2.5 next time",
	}}
	orig := newRecapper
	newRecapper = func(apiKey, model string) api.Recapper { return stub }
	t.Cleanup(func() { newRecapper = orig })

	err = workoutRecapRun("last")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no finished workouts")

	require.NoError(t, workoutStartRun("Upper A"))
	id := activeWorkout(t).ID
	err = workoutRecapRun(id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only finished workouts")

	require.NoError(t, workoutFinishRun())
	resetOut()
	require.NoError(t, workoutRecapRun("last"))
	assert.Equal(t, 1, stub.calls)
	assert.Contains(t, outString(), "Solid press day")
	assert.Contains(t, outString(), "- 9 reps at 100")
	assert.Contains(t, outString(), "Next time: Add 2.5 next time")
}

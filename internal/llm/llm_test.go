package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/lift/internal/models"
)

func ptr[T any](v T) *T { return &v }

func sampleWorkout() (*models.WorkoutSession, models.Summary) {
	w := &models.WorkoutSession{
		ID:          "w1",
		RoutineName: "Upper A",
		Status:      models.SessionStatusFinished,
		Exercises: []models.ExerciseSession{
			{
				Name:        "Bench Press",
				MuscleGroup: "chest",
				Sets: []models.SetRecord{
					{Index: 0, TargetReps: 8, TargetWeight: ptr(80.0), Status: models.SetStatusCompleted, ActualReps: ptr(9), ActualWeight: ptr(82.5)},
					{Index: 1, TargetReps: 8, TargetWeight: ptr(80.0), Status: models.SetStatusCompleted, ActualReps: ptr(6), ActualWeight: ptr(80.0), Failure: true, Note: "elbow twinge"},
				},
			},
			{
				Name: "Plank",
				Sets: []models.SetRecord{
					{Index: 0, TargetReps: 1, Status: models.SetStatusSkipped},
				},
			},
		},
	}
	sum := models.Summary{
		CompletedSets:     2,
		SkippedSets:       1,
		TotalPlannedSets:  3,
		TotalReps:         15,
		TotalVolume:       1222.5,
		Elapsed:           42 * time.Minute,
		RestSeconds:       240,
		CompletionPercent: 66,
		Final:             true,
	}
	return w, sum
}

func TestBuildRecapPrompt(t *testing.T) {
	t.Run("system prompt specifies JSON fields", func(t *testing.T) {
		w, sum := sampleWorkout()
		system, _ := buildRecapPrompt(w, sum)

		assert.Contains(t, system, `"headline"`)
		assert.Contains(t, system, `"highlights"`)
		assert.Contains(t, system, `"suggestion"`)
		assert.Contains(t, system, "JSON")
	})

	t.Run("user prompt carries totals and sets", func(t *testing.T) {
		w, sum := sampleWorkout()
		_, user := buildRecapPrompt(w, sum)

		assert.Contains(t, user, "Workout: Upper A (finished)")
		assert.Contains(t, user, "Duration: 42 min, rest taken: 240 s")
		assert.Contains(t, user, "2 completed, 1 skipped, 0 pending of 3 (66%)")
		assert.Contains(t, user, "total volume: 1222.5")
		assert.Contains(t, user, "## Bench Press [chest]")
		assert.Contains(t, user, "- set 1: target 8 x 80, completed 9 x 82.5")
		assert.Contains(t, user, "(failure) note: elbow twinge")
		assert.Contains(t, user, "- set 1: target 1, skipped")
	})

	t.Run("ad-hoc workout", func(t *testing.T) {
		w, sum := sampleWorkout()
		w.RoutineName = ""
		_, user := buildRecapPrompt(w, sum)
		assert.Contains(t, user, "Workout: ad-hoc workout")
	})
}

func TestParseRecap(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{name: "plain", input: `{"headline":"Solid push day","highlights":["9 reps on set 1"],"suggestion":"Add 2.5"}`, want: "Solid push day"},
		{name: "fenced", input: "```json\n{\"headline\":\"Fenced\"}\n```", want: "Fenced"},
		{name: "empty", input: "", wantErr: "no text content"},
		{name: "not json", input: "Great job!", wantErr: "parse LLM response"},
		{name: "no headline", input: `{"highlights":[]}`, wantErr: "no headline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRecap(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Headline)
		})
	}
}

func TestRecapSchema(t *testing.T) {
	assert.Contains(t, recapSchema, `"headline"`)
	assert.Contains(t, recapSchema, `"maxItems": 4`)
	assert.Contains(t, recapSchema, `"additionalProperties": false`)
	assert.Contains(t, recapSchema, `"required"`)

	system, _ := buildRecapPrompt(&models.WorkoutSession{}, models.Summary{})
	assert.Contains(t, system, recapSchema)
}

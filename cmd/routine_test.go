package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `exercises:
  - name: Bench Press
    sets: 2
    reps: 5
    rest: 60
    weight: 100
    equipment: barbell
    muscle_group: chest
  - name: Plank
    sets: 1
    reps: 1
routines:
  - name: Upper A
    description: Press day
    exercises:
      - name: Bench Press
      - name: Plank
`

// importTestCatalog writes testCatalog under dir and imports it.
func importTestCatalog(t *testing.T, dir string) {
	t.Helper()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o644))
	require.NoError(t, routineImportRun(path))
}

func outString() string {
	return ui.Out.(*bytes.Buffer).String()
}

func errString() string {
	return ui.ErrOut.(*bytes.Buffer).String()
}

func resetOut() {
	ui.Out.(*bytes.Buffer).Reset()
	ui.ErrOut.(*bytes.Buffer).Reset()
}

func TestRoutineImport(t *testing.T) {
	dir := testEnv(t)
	importTestCatalog(t, dir)
	assert.Contains(t, outString(), "exercises: 2 created, 0 updated; routines: 1 created, 0 updated")

	s, err := getStore()
	require.NoError(t, err)
	r, err := s.GetRoutineByName(context.Background(), "Upper A")
	require.NoError(t, err)
	assert.Len(t, r.Exercises, 2)

	// Importing again updates in place.
	resetOut()
	importTestCatalog(t, dir)
	assert.Contains(t, outString(), "exercises: 0 created, 2 updated; routines: 0 created, 1 updated")
}

func TestRoutineImport_DryRun(t *testing.T) {
	dir := testEnv(t)
	dryRun = true
	ui.DryRun = true

	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o644))
	require.NoError(t, routineImportRun(path))

	s, err := getStore()
	require.NoError(t, err)
	routines, err := s.ListRoutines(context.Background())
	require.NoError(t, err)
	assert.Empty(t, routines)
}

func TestRoutineImport_Invalid(t *testing.T) {
	dir := testEnv(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routines:\n  - name: Empty\n"), 0o644))

	err := routineImportRun(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one exercise")

	err = routineImportRun(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open catalog")
}

func TestRoutineListAndShow(t *testing.T) {
	dir := testEnv(t)

	require.NoError(t, routineListRun())
	assert.Contains(t, outString(), "No routines")

	importTestCatalog(t, dir)
	resetOut()
	require.NoError(t, routineListRun())
	assert.Contains(t, outString(), "Upper A")
	assert.Contains(t, outString(), "Press day")

	resetOut()
	require.NoError(t, routineShowRun("upper a"))
	out := outString()
	assert.Contains(t, out, "Bench Press")
	assert.Contains(t, out, "60s")
	assert.Contains(t, out, "Plank")

	resetOut()
	require.NoError(t, routineExercisesRun())
	assert.Contains(t, outString(), "2x5 @ 100")

	err := routineShowRun("Legs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `routine "Legs" not found`)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

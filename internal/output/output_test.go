package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut}, out, errOut
}

func TestMessages(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		dryRun  bool
		emit    func(u *UI)
		wantOut string
		wantErr string
	}{
		{name: "info", emit: func(u *UI) { u.Info("set %d of %d", 1, 3) }, wantOut: "set 1 of 3"},
		{name: "success", emit: func(u *UI) { u.Success("workout %s", "finished") }, wantOut: "workout finished"},
		{name: "warning", emit: func(u *UI) { u.Warning("save failed: %s", "disk full") }, wantErr: "save failed: disk full"},
		{name: "verbose on", verbose: true, emit: func(u *UI) { u.VerboseLog("cursor %d/%d", 0, 1) }, wantOut: "cursor 0/1"},
		{name: "verbose off", emit: func(u *UI) { u.VerboseLog("cursor %d/%d", 0, 1) }},
		{name: "dry run on", dryRun: true, emit: func(u *UI) { u.DryRunMsg("would import %d routines", 2) }, wantErr: "[DRY-RUN] would import 2 routines"},
		{name: "dry run off", emit: func(u *UI) { u.DryRunMsg("would import %d routines", 2) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, out, errOut := newTestUI()
			u.Verbose = tt.verbose
			u.DryRun = tt.dryRun
			tt.emit(u)

			if tt.wantOut == "" {
				assert.Empty(t, out.String())
			} else {
				assert.Contains(t, out.String(), tt.wantOut)
			}
			if tt.wantErr == "" {
				assert.Empty(t, errOut.String())
			} else {
				assert.Contains(t, errOut.String(), tt.wantErr)
			}
		})
	}
}

func TestColorHelpers(t *testing.T) {
	assert.Contains(t, Cyan("Bench Press"), "Bench Press")
	assert.Contains(t, Green("done"), "done")
	assert.Contains(t, Yellow("rest"), "rest")
}

func TestStatusColor(t *testing.T) {
	for _, st := range []string{"active", "resting", "finished", "abandoned", "pending", "completed", "skipped"} {
		assert.Contains(t, StatusColor(st), st)
	}
	assert.Equal(t, "unknown", StatusColor("unknown"))
}

func TestProgressColor(t *testing.T) {
	assert.Contains(t, ProgressColor(90), "90%")
	assert.Contains(t, ProgressColor(60), "60%")
	assert.Contains(t, ProgressColor(30), "30%")
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[----------]", ProgressBar(0, 10))
	assert.Equal(t, "[####------]", ProgressBar(40, 10))
	assert.Equal(t, "[##########]", ProgressBar(100, 10))
	assert.Equal(t, "[##########]", ProgressBar(150, 10))
	assert.Equal(t, "[----------]", ProgressBar(-5, 10))
	assert.Equal(t, "", ProgressBar(50, 0))
}

func TestClock(t *testing.T) {
	assert.Equal(t, "0:00", Clock(0))
	assert.Equal(t, "1:30", Clock(90*time.Second))
	assert.Equal(t, "59:59", Clock(59*time.Minute+59*time.Second))
	assert.Equal(t, "1:02:05", Clock(time.Hour+2*time.Minute+5*time.Second))
	assert.Equal(t, "0:00", Clock(-time.Second))
}

func TestWeight(t *testing.T) {
	w := 62.5
	assert.Equal(t, "62.5", Weight(&w))
	w = 100
	assert.Equal(t, "100", Weight(&w))
	assert.Equal(t, "-", Weight(nil))
}

func TestTable(t *testing.T) {
	u, out, _ := newTestUI()
	table := u.Table([]string{"Exercise", "Status"})
	require.NotNil(t, table)

	require.NoError(t, table.Append([]string{"bench", "completed"}))
	require.NoError(t, table.Append([]string{"row", "pending"}))
	require.NoError(t, table.Render())

	result := strings.ToLower(out.String())
	assert.Contains(t, result, "bench")
	assert.Contains(t, result, "row")
	assert.Contains(t, result, "exercise")
}

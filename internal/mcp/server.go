package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/lift/internal/models"
	"github.com/joescharf/lift/internal/stats"
	"github.com/joescharf/lift/internal/store"
	"github.com/joescharf/lift/internal/workout"
)

// Server wraps the lift session manager and exposes it as MCP tools.
type Server struct {
	store   store.Store
	manager *workout.Manager
	owner   string
	version string
}

// NewServer creates the MCP server wrapper. All tools act for owner.
func NewServer(s store.Store, m *workout.Manager, owner, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{store: s, manager: m, owner: owner, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("lift", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listRoutinesTool())
	srv.AddTool(s.startWorkoutTool())
	srv.AddTool(s.workoutStateTool())
	srv.AddTool(s.completeSetTool())
	srv.AddTool(s.skipSetTool())
	srv.AddTool(s.skipRestTool())
	srv.AddTool(s.finishWorkoutTool())
	srv.AddTool(s.abandonWorkoutTool())
	srv.AddTool(s.historyTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Output shapes
// ---------------------------------------------------------------------------

type setOut struct {
	Set          int      `json:"set"`
	Status       string   `json:"status"`
	TargetReps   int      `json:"target_reps"`
	TargetWeight *float64 `json:"target_weight,omitempty"`
	Reps         *int     `json:"reps,omitempty"`
	Weight       *float64 `json:"weight,omitempty"`
	Note         string   `json:"note,omitempty"`
}

type exerciseOut struct {
	Exercise    int      `json:"exercise"`
	Name        string   `json:"name"`
	RestSeconds int      `json:"rest_seconds"`
	Sets        []setOut `json:"sets"`
}

type currentOut struct {
	Exercise     int      `json:"exercise"`
	Set          int      `json:"set"`
	Name         string   `json:"name"`
	TargetReps   int      `json:"target_reps"`
	TargetWeight *float64 `json:"target_weight,omitempty"`
	Status       string   `json:"status"`
}

type stateOut struct {
	ID            string         `json:"id"`
	Routine       string         `json:"routine"`
	Status        string         `json:"status"`
	StartedAt     string         `json:"started_at"`
	RestRemaining int            `json:"rest_remaining_seconds,omitempty"`
	Current       *currentOut    `json:"current,omitempty"`
	Summary       models.Summary `json:"summary"`
	Exercises     []exerciseOut  `json:"exercises"`
}

func toStateOut(snap workout.Snapshot) stateOut {
	w := snap.Workout
	out := stateOut{
		ID:            w.ID,
		Routine:       w.RoutineName,
		Status:        string(w.Status),
		StartedAt:     w.StartedAt.Format(time.RFC3339),
		RestRemaining: snap.RestRemaining,
		Summary:       snap.Summary,
	}
	for i, ex := range w.Exercises {
		eo := exerciseOut{Exercise: i, Name: ex.Name, RestSeconds: ex.RestSeconds}
		for _, rec := range ex.Sets {
			eo.Sets = append(eo.Sets, setOut{
				Set:          rec.Index,
				Status:       string(rec.Status),
				TargetReps:   rec.TargetReps,
				TargetWeight: rec.TargetWeight,
				Reps:         rec.ActualReps,
				Weight:       rec.ActualWeight,
				Note:         rec.Note,
			})
		}
		out.Exercises = append(out.Exercises, eo)
	}
	if !w.Status.Terminal() {
		c := w.Cursor
		ex := w.Exercises[c.Exercise]
		rec := ex.Sets[c.Set]
		out.Current = &currentOut{
			Exercise:     c.Exercise,
			Set:          c.Set,
			Name:         ex.Name,
			TargetReps:   rec.TargetReps,
			TargetWeight: rec.TargetWeight,
			Status:       string(rec.Status),
		}
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func stateResult(sess *workout.Session) (*mcp.CallToolResult, error) {
	return jsonResult(toStateOut(sess.State()))
}

// errorResult turns a domain error into a tool error with a hint the model
// can act on.
func errorResult(action string, err error) *mcp.CallToolResult {
	msg := fmt.Sprintf("failed to %s: %v", action, err)
	switch {
	case errors.Is(err, workout.ErrNoActiveSession):
		msg += " (start one with lift_start_workout)"
	case errors.Is(err, workout.ErrSessionActive):
		msg += " (finish or abandon it first)"
	case errors.Is(err, workout.ErrBusy):
		msg += " (retry)"
	case errors.Is(err, workout.ErrInvalidState):
		msg += " (check lift_workout_state)"
	}
	return mcp.NewToolResultError(msg)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// lift_list_routines
func (s *Server) listRoutinesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lift_list_routines",
		mcp.WithDescription("List saved workout routines. Returns a JSON array with id, name, description and exercise count."),
	)
	return tool, s.handleListRoutines
}

func (s *Server) handleListRoutines(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	routines, err := s.store.ListRoutines(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list routines: %v", err)), nil
	}

	type routineOut struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Exercises   int    `json:"exercises"`
	}
	out := make([]routineOut, len(routines))
	for i, r := range routines {
		out[i] = routineOut{ID: r.ID, Name: r.Name, Description: r.Description, Exercises: len(r.Exercises)}
	}
	return jsonResult(out)
}

// lift_start_workout
func (s *Server) startWorkoutTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lift_start_workout",
		mcp.WithDescription("Start a workout from a saved routine. Fails if a workout is already in progress."),
		mcp.WithString("routine", mcp.Required(), mcp.Description("Routine name or id")),
	)
	return tool, s.handleStartWorkout
}

func (s *Server) handleStartWorkout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("routine")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: routine"), nil
	}
	routine, err := s.resolveRoutine(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("routine not found: %s", ref)), nil
	}
	sess, err := s.manager.Start(ctx, s.owner, routine.ID)
	if err != nil {
		return errorResult("start workout", err), nil
	}
	return stateResult(sess)
}

// lift_workout_state
func (s *Server) workoutStateTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lift_workout_state",
		mcp.WithDescription("Get the workout in progress: status, current set, remaining rest, running totals and every set."),
	)
	return tool, s.handleWorkoutState
}

func (s *Server) handleWorkoutState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.manager.Resume(ctx, s.owner)
	if err != nil {
		return errorResult("load workout", err), nil
	}
	return stateResult(sess)
}

// cursorArgs reads exercise and set, defaulting to the session cursor.
func cursorArgs(request mcp.CallToolRequest, sess *workout.Session) (int, int) {
	c := sess.Cursor()
	return request.GetInt("exercise", c.Exercise), request.GetInt("set", c.Set)
}

// lift_complete_set
func (s *Server) completeSetTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lift_complete_set",
		mcp.WithDescription("Record a completed set. Exercise and set default to the current set; reps and weight default to the targets. Starts the rest timer when the exercise has rest configured."),
		mcp.WithNumber("exercise", mcp.Description("Exercise index (0-based)")),
		mcp.WithNumber("set", mcp.Description("Set index (0-based)")),
		mcp.WithNumber("reps", mcp.Description("Reps performed")),
		mcp.WithNumber("weight", mcp.Description("Weight used")),
	)
	return tool, s.handleCompleteSet
}

func (s *Server) handleCompleteSet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.manager.Resume(ctx, s.owner)
	if err != nil {
		return errorResult("load workout", err), nil
	}
	exercise, set := cursorArgs(request, sess)
	reps, weight, err := sess.Target(exercise, set)
	if err != nil {
		return errorResult("complete set", err), nil
	}
	reps = request.GetInt("reps", reps)
	weight = request.GetFloat("weight", weight)
	if err := sess.CompleteSet(exercise, set, reps, weight); err != nil {
		return errorResult("complete set", err), nil
	}
	return stateResult(sess)
}

// lift_skip_set
func (s *Server) skipSetTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lift_skip_set",
		mcp.WithDescription("Skip a pending set. Exercise and set default to the current set."),
		mcp.WithNumber("exercise", mcp.Description("Exercise index (0-based)")),
		mcp.WithNumber("set", mcp.Description("Set index (0-based)")),
	)
	return tool, s.handleSkipSet
}

func (s *Server) handleSkipSet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.manager.Resume(ctx, s.owner)
	if err != nil {
		return errorResult("load workout", err), nil
	}
	exercise, set := cursorArgs(request, sess)
	if err := sess.SkipSet(exercise, set); err != nil {
		return errorResult("skip set", err), nil
	}
	return stateResult(sess)
}

// lift_skip_rest
func (s *Server) skipRestTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lift_skip_rest",
		mcp.WithDescription("End the current rest period early and move on to the next set."),
	)
	return tool, s.handleSkipRest
}

func (s *Server) handleSkipRest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.manager.Resume(ctx, s.owner)
	if err != nil {
		return errorResult("load workout", err), nil
	}
	if err := sess.SkipRest(); err != nil {
		return errorResult("skip rest", err), nil
	}
	return stateResult(sess)
}

// lift_finish_workout
func (s *Server) finishWorkoutTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lift_finish_workout",
		mcp.WithDescription("Finish the workout in progress and return its final summary. Pending sets are left out of the totals. Finishing an already finished workout returns the same summary."),
	)
	return tool, s.handleFinishWorkout
}

func (s *Server) handleFinishWorkout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.manager.Latest(ctx, s.owner)
	if err != nil {
		return errorResult("load workout", err), nil
	}
	sum, err := sess.Finish()
	if err != nil {
		return errorResult("finish workout", err), nil
	}

	type finishOut struct {
		ID        string         `json:"id"`
		Summary   models.Summary `json:"summary"`
		SaveError string         `json:"save_error,omitempty"`
	}
	out := finishOut{ID: sess.ID(), Summary: sum}
	if err := sess.Flush(ctx); err != nil {
		out.SaveError = err.Error()
	}
	return jsonResult(out)
}

// lift_abandon_workout
func (s *Server) abandonWorkoutTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lift_abandon_workout",
		mcp.WithDescription("Abandon the workout in progress. Recorded sets are kept for review but it does not count towards statistics."),
	)
	return tool, s.handleAbandonWorkout
}

func (s *Server) handleAbandonWorkout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.manager.Resume(ctx, s.owner)
	if err != nil {
		return errorResult("load workout", err), nil
	}
	if err := sess.Abandon(); err != nil {
		return errorResult("abandon workout", err), nil
	}
	if err := sess.Flush(ctx); err != nil {
		return errorResult("save workout", err), nil
	}
	return stateResult(sess)
}

// lift_history
func (s *Server) historyTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lift_history",
		mcp.WithDescription("List recent finished workouts with per-workout totals, plus aggregate statistics."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of workouts (default 10)")),
		mcp.WithString("since", mcp.Description("Only workouts started on or after this date (YYYY-MM-DD)")),
	)
	return tool, s.handleHistory
}

func (s *Server) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.WorkoutListFilter{
		OwnerID: s.owner,
		Status:  models.SessionStatusFinished,
	}
	if v := request.GetString("since", ""); v != "" {
		since, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid since %q: use YYYY-MM-DD", v)), nil
		}
		filter.Since = since
	}
	workouts, err := s.store.ListWorkouts(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list workouts: %v", err)), nil
	}

	type workoutOut struct {
		ID        string         `json:"id"`
		Routine   string         `json:"routine"`
		StartedAt string         `json:"started_at"`
		Summary   models.Summary `json:"summary"`
	}
	type historyOut struct {
		Stats    models.HistoryStats `json:"stats"`
		Workouts []workoutOut        `json:"workouts"`
	}

	out := historyOut{Stats: stats.History(workouts), Workouts: []workoutOut{}}
	limit := request.GetInt("limit", 10)
	for i, w := range workouts {
		if limit > 0 && i >= limit {
			break
		}
		out.Workouts = append(out.Workouts, workoutOut{
			ID:        w.ID,
			Routine:   w.RoutineName,
			StartedAt: w.StartedAt.Format(time.RFC3339),
			Summary:   stats.Compute(w, time.Now()),
		})
	}
	return jsonResult(out)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// resolveRoutine finds a routine by id, falling back to a name lookup.
func (s *Server) resolveRoutine(ctx context.Context, ref string) (*models.Routine, error) {
	if r, err := s.store.GetRoutine(ctx, ref); err == nil {
		return r, nil
	}
	return s.store.GetRoutineByName(ctx, ref)
}

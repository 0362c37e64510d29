package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/joescharf/lift/internal/llm"
	"github.com/joescharf/lift/internal/models"
	"github.com/joescharf/lift/internal/stats"
	"github.com/joescharf/lift/internal/store"
	"github.com/joescharf/lift/internal/workout"
)

// OwnerHeader selects the owner a request acts for. The server's default
// owner is used when it is absent.
const OwnerHeader = "X-Lift-Owner"

// Recapper writes a post-workout recap.
type Recapper interface {
	Recap(ctx context.Context, w *models.WorkoutSession, sum models.Summary) (*llm.Recap, error)
}

// Server provides the REST API handlers.
type Server struct {
	store   store.Store
	manager *workout.Manager
	recap   Recapper
	owner   string
	log     *slog.Logger
}

// NewServer creates a new API server.
// The recapper may be nil if no API key is configured.
func NewServer(s store.Store, m *workout.Manager, recapper Recapper, owner string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		store:   s,
		manager: m,
		recap:   recapper,
		owner:   owner,
		log:     log,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogging(s.log))
	r.Use(CORS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/exercises", s.listExercises)
		r.Get("/routines", s.listRoutines)
		r.Get("/routines/{id}", s.getRoutine)

		r.Get("/workouts", s.listWorkouts)
		r.Post("/workouts", s.startWorkout)

		r.Route("/workouts/active", func(r chi.Router) {
			r.Get("/", s.activeWorkout)
			r.Get("/events", s.streamEvents)
			r.Post("/sets/{exercise}/{set}/complete", s.completeSet)
			r.Post("/sets/{exercise}/{set}/skip", s.skipSet)
			r.Put("/sets/{exercise}/{set}", s.updateSet)
			r.Post("/sets/{exercise}/{set}/reopen", s.reopenSet)
			r.Post("/sets/{exercise}/{set}/note", s.annotateSet)
			r.Post("/rest", s.startRest)
			r.Post("/skip-rest", s.skipRest)
			r.Post("/select", s.selectExercise)
			r.Post("/finish", s.finishWorkout)
			r.Post("/abandon", s.abandonWorkout)
			r.Post("/save", s.saveWorkout)
		})

		r.Get("/workouts/{id}", s.getWorkout)
		r.Delete("/workouts/{id}", s.deleteWorkout)
		r.Post("/workouts/{id}/recap", s.recapWorkout)

		r.Get("/stats", s.historyStats)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeErr maps a domain error to its HTTP status.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case workout.IsStorageError(err):
		return http.StatusInternalServerError
	case errors.Is(err, workout.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, workout.ErrNotFound), errors.Is(err, workout.ErrNoActiveSession):
		return http.StatusNotFound
	case errors.Is(err, workout.ErrBusy), errors.Is(err, workout.ErrSessionActive), errors.Is(err, workout.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, workout.ErrInvalidCursor), errors.Is(err, workout.ErrEmptyTemplate):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) ownerOf(r *http.Request) string {
	if o := r.Header.Get(OwnerHeader); o != "" {
		return o
	}
	return s.owner
}

// decode reads an optional JSON body into v. An empty body leaves v as is.
func decode(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid JSON")
	}
	return nil
}

// --- Catalog ---

func (s *Server) listExercises(w http.ResponseWriter, r *http.Request) {
	exercises, err := s.store.ListExercises(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, exercises)
}

func (s *Server) listRoutines(w http.ResponseWriter, r *http.Request) {
	routines, err := s.store.ListRoutines(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, routines)
}

func (s *Server) getRoutine(w http.ResponseWriter, r *http.Request) {
	routine, err := s.store.GetRoutine(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, routine)
}

// --- Workout history ---

func (s *Server) listWorkouts(w http.ResponseWriter, r *http.Request) {
	filter, err := s.workoutFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	workouts, err := s.store.ListWorkouts(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, workouts)
}

func (s *Server) workoutFilter(r *http.Request) (store.WorkoutListFilter, error) {
	q := r.URL.Query()
	filter := store.WorkoutListFilter{
		OwnerID: s.ownerOf(r),
		Status:  models.SessionStatus(q.Get("status")),
	}
	if v := q.Get("since"); v != "" {
		since, err := parseSince(v)
		if err != nil {
			return filter, err
		}
		filter.Since = since
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("limit must be a non-negative integer")
		}
		filter.Limit = n
	}
	return filter, nil
}

// parseSince accepts a date (2006-01-02) or an RFC 3339 timestamp.
func parseSince(v string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, errors.New("since must be YYYY-MM-DD or RFC 3339")
	}
	return t, nil
}

func (s *Server) getWorkout(w http.ResponseWriter, r *http.Request) {
	wk, err := s.store.GetWorkout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wk)
}

func (s *Server) deleteWorkout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	wk, err := s.store.GetWorkout(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !wk.Status.Terminal() {
		writeError(w, http.StatusConflict, "cannot delete a workout in progress")
		return
	}
	if err := s.store.DeleteWorkout(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) historyStats(w http.ResponseWriter, r *http.Request) {
	filter, err := s.workoutFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Status = models.SessionStatusFinished
	workouts, err := s.store.ListWorkouts(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats.History(workouts))
}

func (s *Server) recapWorkout(w http.ResponseWriter, r *http.Request) {
	if s.recap == nil {
		writeError(w, http.StatusServiceUnavailable, "recaps need anthropic.api_key to be configured")
		return
	}
	wk, err := s.store.GetWorkout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if wk.Status != models.SessionStatusFinished {
		writeError(w, http.StatusConflict, "only finished workouts can be recapped")
		return
	}
	recap, err := s.recap.Recap(r.Context(), wk, stats.Compute(wk, time.Now()))
	if err != nil {
		s.log.Error("recap failed", "workout", wk.ID, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, recap)
}

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/joescharf/lift/internal/models"
	"github.com/joescharf/lift/internal/workout"
)

type startRequest struct {
	RoutineID string `json:"routine_id"`
	Routine   string `json:"routine"`
}

type setRequest struct {
	Reps   *int     `json:"reps"`
	Weight *float64 `json:"weight"`
}

type noteRequest struct {
	Note    string `json:"note"`
	DropSet bool   `json:"drop_set"`
	Failure bool   `json:"failure"`
}

type restRequest struct {
	Seconds int `json:"seconds"`
}

type selectRequest struct {
	Exercise int `json:"exercise"`
}

type finishResponse struct {
	Summary   models.Summary `json:"summary"`
	SaveError string         `json:"save_error,omitempty"`
}

func (s *Server) startWorkout(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	routineID := req.RoutineID
	if routineID == "" {
		if req.Routine == "" {
			writeError(w, http.StatusBadRequest, "routine_id or routine is required")
			return
		}
		routine, err := s.store.GetRoutineByName(r.Context(), req.Routine)
		if err != nil {
			writeErr(w, err)
			return
		}
		routineID = routine.ID
	}

	sess, err := s.manager.Start(r.Context(), s.ownerOf(r), routineID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.State())
}

func (s *Server) activeWorkout(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Resume(r.Context(), s.ownerOf(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

// withSession resumes the owner's session, applies fn and replies with the
// resulting state.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(*workout.Session) error) {
	sess, err := s.manager.Resume(r.Context(), s.ownerOf(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := fn(sess); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

// setCursor parses the {exercise}/{set} path parameters.
func setCursor(r *http.Request) (exercise, set int, err error) {
	exercise, err = strconv.Atoi(chi.URLParam(r, "exercise"))
	if err != nil {
		return 0, 0, errors.New("exercise must be an integer")
	}
	set, err = strconv.Atoi(chi.URLParam(r, "set"))
	if err != nil {
		return 0, 0, errors.New("set must be an integer")
	}
	return exercise, set, nil
}

// readSet parses the cursor and a reps/weight body. Missing values fall back
// to the set's targets.
func (s *Server) readSet(w http.ResponseWriter, r *http.Request) (exercise, set int, req setRequest, ok bool) {
	exercise, set, err := setCursor(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, req, false
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, req, false
	}
	return exercise, set, req, true
}

// actuals resolves omitted reps or weight from the set's targets.
func actuals(sess *workout.Session, exercise, set int, req setRequest) (int, float64, error) {
	reps, weight, err := sess.Target(exercise, set)
	if err != nil {
		return 0, 0, err
	}
	if req.Reps != nil {
		reps = *req.Reps
	}
	if req.Weight != nil {
		weight = *req.Weight
	}
	return reps, weight, nil
}

func (s *Server) completeSet(w http.ResponseWriter, r *http.Request) {
	exercise, set, req, ok := s.readSet(w, r)
	if !ok {
		return
	}
	s.withSession(w, r, func(sess *workout.Session) error {
		reps, weight, err := actuals(sess, exercise, set, req)
		if err != nil {
			return err
		}
		return sess.CompleteSet(exercise, set, reps, weight)
	})
}

func (s *Server) updateSet(w http.ResponseWriter, r *http.Request) {
	exercise, set, req, ok := s.readSet(w, r)
	if !ok {
		return
	}
	s.withSession(w, r, func(sess *workout.Session) error {
		reps, weight, err := actuals(sess, exercise, set, req)
		if err != nil {
			return err
		}
		return sess.UpdateSet(exercise, set, reps, weight)
	})
}

func (s *Server) skipSet(w http.ResponseWriter, r *http.Request) {
	exercise, set, err := setCursor(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.withSession(w, r, func(sess *workout.Session) error {
		return sess.SkipSet(exercise, set)
	})
}

func (s *Server) reopenSet(w http.ResponseWriter, r *http.Request) {
	exercise, set, err := setCursor(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.withSession(w, r, func(sess *workout.Session) error {
		return sess.ReopenSet(exercise, set)
	})
}

func (s *Server) annotateSet(w http.ResponseWriter, r *http.Request) {
	exercise, set, err := setCursor(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req noteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.withSession(w, r, func(sess *workout.Session) error {
		return sess.AnnotateSet(exercise, set, req.Note, req.DropSet, req.Failure)
	})
}

func (s *Server) startRest(w http.ResponseWriter, r *http.Request) {
	var req restRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.withSession(w, r, func(sess *workout.Session) error {
		return sess.StartRest(req.Seconds)
	})
}

func (s *Server) skipRest(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *workout.Session) error {
		return sess.SkipRest()
	})
}

func (s *Server) selectExercise(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.withSession(w, r, func(sess *workout.Session) error {
		return sess.SelectExercise(req.Exercise)
	})
}

func (s *Server) abandonWorkout(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *workout.Session) error {
		if err := sess.Abandon(); err != nil {
			return err
		}
		_ = s.flush(r.Context(), sess)
		return nil
	})
}

// finishWorkout is idempotent: finishing the owner's finished workout again
// returns the same summary.
func (s *Server) finishWorkout(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Latest(r.Context(), s.ownerOf(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	sum, err := sess.Finish()
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := finishResponse{Summary: sum}
	if err := s.flush(r.Context(), sess); err != nil {
		resp.SaveError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// saveWorkout retries persistence after a failed background save.
func (s *Server) saveWorkout(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *workout.Session) error {
		return sess.Save(r.Context())
	})
}

// flush waits for the background save of a terminal transition so the
// response reflects what is on disk. POST .../save retries a failure.
func (s *Server) flush(ctx context.Context, sess *workout.Session) error {
	err := sess.Flush(ctx)
	if err != nil {
		s.log.Warn("workout save failed", "session", sess.ID(), "error", err)
	}
	return err
}

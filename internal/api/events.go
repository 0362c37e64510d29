package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/joescharf/lift/internal/models"
	"github.com/joescharf/lift/internal/workout"
)

// streamEvents serves the active session's events as server-sent events.
// The first event is a "snapshot" of the current state. The stream ends
// when the session finishes or is abandoned, or the client goes away.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	sess, err := s.manager.Resume(r.Context(), s.ownerOf(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	events, cancel := sess.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "snapshot", sess.State()); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, string(e.Kind), e); err != nil {
				s.log.Debug("event stream closed", "session", sess.ID(), "error", err)
				return
			}
			flusher.Flush()
			if endsStream(e) {
				return
			}
		}
	}
}

func endsStream(e workout.Event) bool {
	return e.Kind == workout.EventSessionFinished ||
		(e.Kind == workout.EventStateChanged && e.State == models.SessionStatusAbandoned)
}

func writeEvent(w io.Writer, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

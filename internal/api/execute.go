package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/CynnixSinn/Cynetics-CLI/internal/engine"
	"github.com/CynnixSinn/Cynetics-CLI/internal/policy"
	"github.com/CynnixSinn/Cynetics-CLI/internal/store"
)

// handleExecuteTask runs a task to a terminal state and returns the terminal
// record. The request blocks for the duration of the command, so the write
// deadline is lifted before execution starts.
func (s *Server) handleExecuteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Executions routinely outlive the server's write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for execute", "error", err)
	}

	task, err := s.engine.ExecuteTask(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if errors.Is(err, engine.ErrConflict) {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if errors.Is(err, policy.ErrViolation) {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("execute task", "task_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to execute task")
		return
	}

	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := s.engine.Cancel(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if errors.Is(err, engine.ErrConflict) {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("cancel task", "task_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to cancel task")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

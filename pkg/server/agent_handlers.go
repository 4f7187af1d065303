package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/socraticlabs/coach/pkg/agent"
	"github.com/socraticlabs/coach/pkg/session"
)

type agentInitRequest struct {
	ModuleType string         `json:"module_type"`
	Context    map[string]any `json:"context"`
}

type agentInputRequest struct {
	InputType string         `json:"input_type"`
	InputData map[string]any `json:"input_data"`
}

// handleAgentInit creates a session and returns its opening action.
func (s *Server) handleAgentInit(w http.ResponseWriter, r *http.Request) {
	var req agentInitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, a, err := s.agents.Create(req.ModuleType, req.Context)
	if err != nil {
		if errors.Is(err, agent.ErrModuleNotSupported) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var action agent.Action
	if err := s.agents.Do(id, func(a agent.Agent) error {
		var initErr error
		action, initErr = a.Initialize(r.Context())
		return initErr
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	slog.Info("agent session created", "session_id", id, "module", req.ModuleType)
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":     id,
		"initial_action": action,
		"state":          a.State().Snapshot(),
	})
}

// handleAgentInput feeds a student input to a session.
func (s *Server) handleAgentInput(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	var req agentInputRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var action agent.Action
	var snapshot agent.Snapshot
	err := s.agents.Do(id, func(a agent.Agent) error {
		var inputErr error
		action, inputErr = a.ProcessInput(r.Context(), req.InputType, req.InputData)
		snapshot = a.State().Snapshot()
		return inputErr
	})
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"action": action,
		"state":  snapshot,
	})
}

func (s *Server) handleAgentState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	a, ok := s.agents.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, a.State().Snapshot())
}

func (s *Server) handleAgentReset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	err := s.agents.Do(id, func(a agent.Agent) error {
		a.Reset()
		return nil
	})
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleAgentDelete removes a session. Deleting an already-deleted id
// reports not-found, not success.
func (s *Server) handleAgentDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !s.agents.Delete(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

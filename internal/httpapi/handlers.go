package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Harshitk-cp/engram/internal/engine"
)

// healthHandler reports liveness only; it never touches an agent's
// Store, so it stays cheap under the rate limiter.
func healthHandler(startedAt time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"uptime": time.Since(startedAt).String(),
		})
	}
}

func statsHandler(mgr *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID := chi.URLParam(r, "id")
		if agentID == "" {
			writeError(w, http.StatusBadRequest, "missing agent id")
			return
		}

		e, err := mgr.Get(r.Context(), agentID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to open agent engine")
			return
		}

		stats, err := e.GetStats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read stats")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

type learnRequest struct {
	SessionID  string   `json:"session_id"`
	MessageIDs []string `json:"message_ids,omitempty"`
	Text       string   `json:"text"`
}

func learnHandler(mgr *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID := chi.URLParam(r, "id")
		if agentID == "" {
			writeError(w, http.StatusBadRequest, "missing agent id")
			return
		}

		var req learnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Text == "" {
			writeError(w, http.StatusBadRequest, "text is required")
			return
		}

		e, err := mgr.Get(r.Context(), agentID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to open agent engine")
			return
		}

		result, err := e.LearnFromConversation(r.Context(), req.SessionID, req.MessageIDs, req.Text)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to process conversation turn")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

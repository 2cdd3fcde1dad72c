// Package handlers contains the thin HTTP adapters for the public API.
// Handlers validate input, call into the domain packages, and write JSON;
// auth, usage recording, and metrics live in middleware.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/msaada/backend/internal/chat"
	"github.com/msaada/backend/internal/langdetect"
	"github.com/msaada/backend/internal/middleware"
)

// ChatRequest is the JSON request body for POST /api/v1/chat
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// HandleChat processes one support-chat message through the pipeline.
// POST /api/v1/chat
func HandleChat(pipeline *chat.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
			return
		}

		sessionID := req.SessionID
		if sessionID == "" {
			// Scope anonymous sessions to the resolved principal so two
			// callers never share conversation history by accident.
			if principal, ok := middleware.PrincipalFrom(r.Context()); ok {
				sessionID = principal.OrgID + ":" + principal.SubjectID
			} else {
				sessionID = uuid.NewString()
			}
		}

		reply, err := pipeline.Process(r.Context(), sessionID, req.Message)
		if err != nil {
			if errors.Is(err, langdetect.ErrInvalidInput) {
				http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
				return
			}
			writeInternalError(w, "chat processing failed", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"session_id": sessionID,
			"reply":      reply.Reply,
			"intent":     reply.Intent,
			"urgency":    reply.Urgency,
			"emotion":    reply.Emotion,
			"detection":  reply.Detection,
			"fallback":   reply.Fallback,
		})
	}
}

// writeInternalError logs the real error under a correlation id and
// returns an opaque message so internals never leak to callers.
func writeInternalError(w http.ResponseWriter, msg string, err error) {
	correlationID := uuid.NewString()
	slog.Error(msg, "correlation_id", correlationID, "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{
		"error":          "internal error",
		"correlation_id": correlationID,
	})
}

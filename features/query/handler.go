package query

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/VictorGavo/milvus-search/internal/gemini"
	"github.com/VictorGavo/milvus-search/internal/middleware"
	"github.com/VictorGavo/milvus-search/internal/vector"
)

// Answerer is what the HTTP layer needs from the query engine.
type Answerer interface {
	Answer(ctx context.Context, queryText string, topK int, summarize bool) (*Answer, error)
	Discuss(ctx context.Context, sessionID, question string) (string, error)
}

type Handler struct {
	service Answerer
}

func NewHandler(service Answerer) *Handler {
	return &Handler{service: service}
}

// Ask handles POST /query.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string `json:"query"`
		TopK      int    `json:"top_k"`
		Summarize bool   `json:"summarize"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	answer, err := h.service.Answer(r.Context(), req.Query, req.TopK, req.Summarize)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	h.writeJSON(r.Context(), w, http.StatusOK, answer)
}

// Converse handles POST /discuss, a follow-up against a prior query session.
func (h *Handler) Converse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Question  string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "session_id is required", http.StatusBadRequest)
		return
	}

	answer, err := h.service.Discuss(r.Context(), req.SessionID, req.Question)
	if err != nil {
		h.handleServiceError(r.Context(), w, err)
		return
	}

	h.writeJSON(r.Context(), w, http.StatusOK, map[string]string{
		"session_id": req.SessionID,
		"answer":     answer,
	})
}

func (h *Handler) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyQuery):
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrSessionNotFound):
		h.writeError(ctx, w, "SESSION_NOT_FOUND", err.Error(), http.StatusNotFound)
	case errors.Is(err, gemini.ErrGateway):
		slog.ErrorContext(ctx, "model gateway failure", "error", err)
		h.writeError(ctx, w, "GATEWAY_ERROR", err.Error(), http.StatusBadGateway)
	case errors.Is(err, vector.ErrUnavailable),
		errors.Is(err, vector.ErrCollectionNotFound),
		errors.Is(err, vector.ErrCollectionNotLoaded):
		slog.ErrorContext(ctx, "vector store failure", "error", err)
		h.writeError(ctx, w, "STORE_UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
	default:
		slog.ErrorContext(ctx, "query failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode error response", "error", err)
	}
}

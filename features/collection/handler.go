// Package collection exposes vector collection management: explicit creation
// with a declared dimension and an explicit reuse-or-recreate choice.
package collection

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/VictorGavo/milvus-search/internal/middleware"
	"github.com/VictorGavo/milvus-search/internal/vector"
)

// Ensurer is the collection-lifecycle slice of the vector store.
type Ensurer interface {
	EnsureCollection(ctx context.Context, name string, dim int, policy vector.EnsurePolicy) (bool, error)
}

type Handler struct {
	store      Ensurer
	defaultDim int
}

func NewHandler(store Ensurer, defaultDim int) *Handler {
	return &Handler{store: store, defaultDim: defaultDim}
}

// Create handles POST /collections. Recreate is destructive and must be
// requested explicitly; the default is reuse.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Dim      int    `json:"dim"`
		Recreate bool   `json:"recreate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "name is required", http.StatusBadRequest)
		return
	}
	if req.Dim <= 0 {
		req.Dim = h.defaultDim
	}

	policy := vector.PolicyReuse
	if req.Recreate {
		policy = vector.PolicyRecreate
	}

	created, err := h.store.EnsureCollection(r.Context(), req.Name, req.Dim, policy)
	if err != nil {
		slog.ErrorContext(r.Context(), "ensure collection failed", "name", req.Name, "error", err)
		code, status := "INTERNAL_ERROR", http.StatusInternalServerError
		if errors.Is(err, vector.ErrUnavailable) {
			code, status = "STORE_UNAVAILABLE", http.StatusServiceUnavailable
		}
		h.writeError(r.Context(), w, code, err.Error(), status)
		return
	}

	outcome := "already exists"
	if created {
		outcome = "created"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	resp := map[string]interface{}{"name": req.Name, "dim": req.Dim, "outcome": outcome}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
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

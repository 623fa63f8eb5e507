// Package logger decorates slog handlers with request-scoped attributes.
package logger

import (
	"context"
	"log/slog"

	"github.com/VictorGavo/milvus-search/internal/middleware"
)

// ContextHandler stamps every record with the correlation id carried in the
// context, so API requests, worker messages and their log lines can be joined
// without threading the id through every call site.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

// Handle adds correlation_id when the context carries one. Records logged
// outside a request or task stay untouched.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ctx.Value(middleware.CorrelationKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

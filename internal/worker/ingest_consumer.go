package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"github.com/VictorGavo/milvus-search/features/document"
	"github.com/VictorGavo/milvus-search/internal/events"
	"github.com/VictorGavo/milvus-search/internal/middleware"
	"github.com/VictorGavo/milvus-search/internal/segment"
)

// Ingester runs the document ingestion pipeline for one file.
type Ingester interface {
	Ingest(ctx context.Context, path string, strategy segment.Strategy) (*document.Report, error)
}

// Publisher posts a message to a topic. Satisfied by *nsq.Producer.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// IngestConsumer consumes ingest.task messages and runs the ingestion
// pipeline, publishing a result event per task.
type IngestConsumer struct {
	ingester    Ingester
	publisher   Publisher
	resultTopic string
}

func NewIngestConsumer(ingester Ingester, publisher Publisher, resultTopic string) *IngestConsumer {
	return &IngestConsumer{
		ingester:    ingester,
		publisher:   publisher,
		resultTopic: resultTopic,
	}
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task events.IngestTask
	if err := json.Unmarshal(m.Body, &task); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}
	if task.Path == "" {
		slog.Error("poison pill: task without path")
		return nil
	}

	ctx := context.Background()
	if task.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, task.CorrelationID)
	}

	report, err := h.ingester.Ingest(ctx, task.Path, segment.Strategy(task.Strategy))
	if err != nil {
		slog.ErrorContext(ctx, "ingestion failed", "path", task.Path, "error", err)
		if errors.Is(err, segment.ErrUnreadableDocument) {
			// Permanent: the file will not get more readable on retry.
			h.publishResult(ctx, events.IngestResult{
				Path:          task.Path,
				Status:        "failure",
				Error:         err.Error(),
				CorrelationID: task.CorrelationID,
			})
			return nil
		}
		return err // Retry
	}

	slog.InfoContext(ctx, "ingestion finished",
		"path", task.Path, "document", report.Document,
		"stored", report.Stored, "skipped", report.Skipped, "failed", report.Failed)

	h.publishResult(ctx, events.IngestResult{
		Path:          task.Path,
		Document:      report.Document,
		Status:        report.Status(),
		Stored:        report.Stored,
		Skipped:       report.Skipped,
		Failed:        report.Failed,
		CorrelationID: task.CorrelationID,
	})
	return nil
}

func (h *IngestConsumer) publishResult(ctx context.Context, result events.IngestResult) {
	if h.publisher == nil {
		return
	}
	body, err := json.Marshal(result)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal ingest result", "error", err)
		return
	}
	if err := h.publisher.Publish(h.resultTopic, body); err != nil {
		slog.ErrorContext(ctx, "failed to publish ingest result", "topic", h.resultTopic, "error", err)
	}
}

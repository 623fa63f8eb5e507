package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/VictorGavo/milvus-search/features/document"
	"github.com/VictorGavo/milvus-search/internal/events"
	"github.com/VictorGavo/milvus-search/internal/segment"
	"github.com/VictorGavo/milvus-search/internal/worker"
)

type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) Ingest(ctx context.Context, path string, strategy segment.Strategy) (*document.Report, error) {
	args := m.Called(ctx, path, strategy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Report), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

func TestIngestConsumer_HandleMessage(t *testing.T) {
	ingester := new(MockIngester)
	publisher := new(MockPublisher)
	consumer := worker.NewIngestConsumer(ingester, publisher, "ingest.result")

	task := events.IngestTask{Path: "/data/uploads/report.pdf", Strategy: "page", CorrelationID: "corr-1"}
	body, _ := json.Marshal(task)
	msg := &nsq.Message{Body: body}

	ingester.On("Ingest", mock.Anything, "/data/uploads/report.pdf", segment.StrategyPage).
		Return(&document.Report{Document: "report.pdf", Stored: 3, Skipped: 1}, nil)
	publisher.On("Publish", "ingest.result", mock.MatchedBy(func(b []byte) bool {
		var res events.IngestResult
		require.NoError(t, json.Unmarshal(b, &res))
		return res.Document == "report.pdf" && res.Status == "success" &&
			res.Stored == 3 && res.Skipped == 1 && res.CorrelationID == "corr-1"
	})).Return(nil)

	err := consumer.HandleMessage(msg)

	assert.NoError(t, err)
	ingester.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestIngestConsumer_PoisonPill(t *testing.T) {
	ingester := new(MockIngester)
	consumer := worker.NewIngestConsumer(ingester, nil, "ingest.result")

	t.Run("invalid json", func(t *testing.T) {
		err := consumer.HandleMessage(&nsq.Message{Body: []byte("invalid json")})
		assert.NoError(t, err) // Should return nil (ack)
	})

	t.Run("missing path", func(t *testing.T) {
		err := consumer.HandleMessage(&nsq.Message{Body: []byte(`{"strategy":"page"}`)})
		assert.NoError(t, err)
	})

	t.Run("empty body", func(t *testing.T) {
		err := consumer.HandleMessage(&nsq.Message{Body: nil})
		assert.NoError(t, err)
	})

	ingester.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestConsumer_Failures(t *testing.T) {
	t.Run("unreadable file acks and publishes failure", func(t *testing.T) {
		ingester := new(MockIngester)
		publisher := new(MockPublisher)
		consumer := worker.NewIngestConsumer(ingester, publisher, "ingest.result")

		body, _ := json.Marshal(events.IngestTask{Path: "/data/uploads/broken.pdf"})
		ingester.On("Ingest", mock.Anything, "/data/uploads/broken.pdf", segment.Strategy("")).
			Return(nil, segment.ErrUnreadableDocument)
		publisher.On("Publish", "ingest.result", mock.MatchedBy(func(b []byte) bool {
			var res events.IngestResult
			require.NoError(t, json.Unmarshal(b, &res))
			return res.Status == "failure" && res.Error != ""
		})).Return(nil)

		err := consumer.HandleMessage(&nsq.Message{Body: body})

		assert.NoError(t, err)
		publisher.AssertExpectations(t)
	})

	t.Run("transient failure requeues without a result event", func(t *testing.T) {
		ingester := new(MockIngester)
		publisher := new(MockPublisher)
		consumer := worker.NewIngestConsumer(ingester, publisher, "ingest.result")

		body, _ := json.Marshal(events.IngestTask{Path: "/data/uploads/report.pdf"})
		ingester.On("Ingest", mock.Anything, "/data/uploads/report.pdf", segment.Strategy("")).
			Return(nil, errors.New("connection refused"))

		err := consumer.HandleMessage(&nsq.Message{Body: body})

		assert.Error(t, err)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})
}

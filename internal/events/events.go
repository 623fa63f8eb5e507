// Package events defines the message payloads exchanged over NSQ. It imports
// nothing from the feature packages so both publishers and consumers can
// depend on it.
package events

// IngestTask asks the worker to ingest one previously saved file. Published
// to ingest.task by the async upload endpoint.
type IngestTask struct {
	Path          string `json:"path"`
	Strategy      string `json:"strategy,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// IngestResult summarizes a completed (or failed) ingestion. Published to
// ingest.result for any downstream consumer.
type IngestResult struct {
	Path          string `json:"path"`
	Document      string `json:"document,omitempty"`
	Status        string `json:"status"`
	Stored        int    `json:"stored"`
	Skipped       int    `json:"skipped"`
	Failed        int    `json:"failed"`
	Error         string `json:"error,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

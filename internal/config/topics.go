package config

// NSQ topics for the async ingestion pipeline.
const (
	TopicIngestTask   = "ingest.task"
	TopicIngestResult = "ingest.result"
)

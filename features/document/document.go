// Package document covers the text store and the ingestion pipeline: PDFs in,
// per-unit vectors and text rows out.
package document

import (
	"context"
	"errors"
	"time"

	"github.com/VictorGavo/milvus-search/internal/segment"
	"github.com/VictorGavo/milvus-search/internal/vector"
)

// TextUnit is one persisted span of document text. Written once during
// ingestion, never mutated.
type TextUnit struct {
	ID           int64     `json:"id"`
	DocumentName string    `json:"document_name"`
	PageNumber   int       `json:"page_number"`
	Text         string    `json:"text"`
	TextHash     string    `json:"-"`
	ProcessedAt  time.Time `json:"processed_at"`
}

var (
	// ErrDuplicateContent: a unit with the same content hash is already
	// stored. Ingestion treats this as a skip, not a failure.
	ErrDuplicateContent = errors.New("duplicate content")

	// ErrNotFound: no text row for the requested id.
	ErrNotFound = errors.New("text unit not found")
)

// Repository is the text store: id-keyed rows with a content-hash uniqueness
// guarantee enforced by the store itself.
type Repository interface {
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	Insert(ctx context.Context, unit *TextUnit) error
	GetByID(ctx context.Context, id int64) (*TextUnit, error)
}

// Embedder converts a text unit into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the slice of the vector adapter the coordinator drives.
type VectorStore interface {
	EnsureCollection(ctx context.Context, name string, dim int, policy vector.EnsurePolicy) (bool, error)
	Upsert(ctx context.Context, name string, ids []int64, vectors [][]float32) error
	Load(ctx context.Context, name string) error
}

// DocumentReader extracts a segment.Document from a file on disk.
type DocumentReader func(path string) (segment.Document, error)

// Unit outcome statuses.
const (
	StatusStored  = "stored"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// UnitOutcome reports what happened to one text unit during ingestion.
type UnitOutcome struct {
	ID       int64  `json:"id"`
	Sequence int    `json:"sequence"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Report is the per-document ingestion result. Unit failures never abort
// sibling units, so a report can mix stored, skipped and failed entries.
type Report struct {
	Document   string        `json:"document"`
	Collection string        `json:"collection"`
	Stored     int           `json:"stored"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Units      []UnitOutcome `json:"units"`
}

// Status collapses the report into success, partial or failure.
func (r *Report) Status() string {
	switch {
	case r.Failed == 0:
		return "success"
	case r.Stored > 0 || r.Skipped > 0:
		return "partial"
	default:
		return "failure"
	}
}

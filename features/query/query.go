// Package query answers free-text questions: embed, nearest-neighbor search,
// join against the text store, and optionally summarize and discuss.
package query

import (
	"context"
	"errors"

	"github.com/VictorGavo/milvus-search/features/document"
	"github.com/VictorGavo/milvus-search/internal/vector"
)

// Result is one ranked hit joined with its stored text. Transient, built per
// query.
type Result struct {
	Score        float32 `json:"score"`
	TextID       int64   `json:"text_id"`
	Text         string  `json:"text"`
	DocumentName string  `json:"document_name"`
	PageNumber   int     `json:"page_number"`
}

// Answer is the full response to one query.
type Answer struct {
	SessionID string   `json:"session_id"`
	Results   []Result `json:"results"`
	Summary   string   `json:"summary,omitempty"`
}

// ErrSessionNotFound: the conversation id is unknown or has expired.
var ErrSessionNotFound = errors.New("session not found")

// ErrEmptyQuery rejects blank query text before any remote call.
var ErrEmptyQuery = errors.New("query text is empty")

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher is the search-side slice of the vector store adapter.
type VectorSearcher interface {
	Load(ctx context.Context, name string) error
	Search(ctx context.Context, name string, vectors [][]float32, topK int) ([][]vector.Hit, error)
}

// TextFetcher joins vector hits back to stored text.
type TextFetcher interface {
	GetByID(ctx context.Context, id int64) (*document.TextUnit, error)
}

// Chat is the summarization/conversation gateway.
type Chat interface {
	Summarize(ctx context.Context, texts []string) (string, error)
	Discuss(ctx context.Context, question, background string) (string, error)
}

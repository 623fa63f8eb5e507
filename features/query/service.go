package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/VictorGavo/milvus-search/features/document"
	"github.com/VictorGavo/milvus-search/internal/middleware"
)

// Service is the query engine: embed the query, search the loaded collection,
// join hits back to stored text in rank order, and maintain conversation
// state for the discuss flow.
type Service struct {
	embedder    Embedder
	store       VectorSearcher
	texts       TextFetcher
	chat        Chat
	sessions    *SessionStore
	logger      *QueryLogger
	collection  string
	defaultTopK int
}

func NewService(e Embedder, store VectorSearcher, texts TextFetcher, chat Chat, sessions *SessionStore, logger *QueryLogger, collection string, defaultTopK int) *Service {
	if defaultTopK <= 0 {
		defaultTopK = 3
	}
	return &Service{
		embedder:    e,
		store:       store,
		texts:       texts,
		chat:        chat,
		sessions:    sessions,
		logger:      logger,
		collection:  collection,
		defaultTopK: defaultTopK,
	}
}

// Answer runs the retrieval flow for one query. When summarize is set the
// joined texts are condensed by the chat gateway; either way the results and
// any summary are parked on a new conversation for follow-up discussion.
func (s *Service) Answer(ctx context.Context, queryText string, topK int, summarize bool) (*Answer, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = s.defaultTopK
	}
	start := time.Now()

	vec, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// Load defensively; it is a no-op on an already-loaded collection.
	if err := s.store.Load(ctx, s.collection); err != nil {
		return nil, fmt.Errorf("loading collection %q: %w", s.collection, err)
	}

	hits, err := s.store.Search(ctx, s.collection, [][]float32{vec}, topK)
	if err != nil {
		return nil, fmt.Errorf("searching collection %q: %w", s.collection, err)
	}

	// Join in rank order. A hit without a text row means the stores drifted;
	// that is tolerated, the hit is dropped with a warning.
	var results []Result
	joinMisses := 0
	if len(hits) > 0 {
		for _, hit := range hits[0] {
			unit, err := s.texts.GetByID(ctx, hit.TextID)
			if errors.Is(err, document.ErrNotFound) {
				slog.WarnContext(ctx, "join miss: vector hit has no text row", "text_id", hit.TextID)
				joinMisses++
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("fetching text %d: %w", hit.TextID, err)
			}
			results = append(results, Result{
				Score:        hit.Score,
				TextID:       unit.ID,
				Text:         unit.Text,
				DocumentName: unit.DocumentName,
				PageNumber:   unit.PageNumber,
			})
		}
	}

	var summary string
	if summarize && s.chat != nil && len(results) > 0 {
		texts := make([]string, len(results))
		for i, r := range results {
			texts[i] = r.Text
		}
		summary, err = s.chat.Summarize(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("summarizing results: %w", err)
		}
	}

	conv := s.sessions.Create(queryText, results, summary)

	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			Query:         queryText,
			TopK:          topK,
			NumResults:    len(results),
			JoinMisses:    joinMisses,
			Duration:      time.Since(start),
			CorrelationID: middleware.GetCorrelationID(ctx),
		})
	}

	return &Answer{SessionID: conv.ID, Results: results, Summary: summary}, nil
}

// Discuss answers a follow-up question using the context captured by a prior
// Answer call.
func (s *Service) Discuss(ctx context.Context, sessionID, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuery
	}
	conv, ok := s.sessions.Get(sessionID)
	if !ok {
		return "", ErrSessionNotFound
	}
	if s.chat == nil {
		return "", errors.New("conversation gateway not configured")
	}

	answer, err := s.chat.Discuss(ctx, question, conversationContext(conv))
	if err != nil {
		return "", fmt.Errorf("discussing question: %w", err)
	}

	if !s.sessions.Append(sessionID, question, answer) {
		slog.WarnContext(ctx, "session expired before exchange could be recorded", "session_id", sessionID)
	}
	return answer, nil
}

func conversationContext(conv *Conversation) string {
	var b strings.Builder
	if conv.Summary != "" {
		b.WriteString("Summary: ")
		b.WriteString(conv.Summary)
		b.WriteString("\n\n")
	}
	for _, r := range conv.Results {
		fmt.Fprintf(&b, "[%s p.%d]\n%s\n\n", r.DocumentName, r.PageNumber, r.Text)
	}
	for _, ex := range conv.Exchanges {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", ex.Question, ex.Answer)
	}
	return b.String()
}

package query

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Exchange is one discuss round within a conversation.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Conversation carries the retrieved context from a query into later discuss
// calls. Created on query, expired after inactivity.
type Conversation struct {
	ID        string     `json:"id"`
	Query     string     `json:"query"`
	Summary   string     `json:"summary,omitempty"`
	Results   []Result   `json:"results"`
	Exchanges []Exchange `json:"exchanges,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// snapshot copies the conversation and its slices so readers never share
// backing arrays with a conversation that Append is still mutating.
func (c *Conversation) snapshot() *Conversation {
	cp := *c
	cp.Results = slices.Clone(c.Results)
	cp.Exchanges = slices.Clone(c.Exchanges)
	return &cp
}

// SessionStore holds live conversations, bounded in count and lifetime. The
// stored *Conversation values are only ever touched under the mutex; Get hands
// out snapshots, so concurrent Append calls cannot race a reader.
type SessionStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *Conversation]
}

func NewSessionStore(maxEntries int, ttl time.Duration) *SessionStore {
	return &SessionStore{
		cache: expirable.NewLRU[string, *Conversation](maxEntries, nil, ttl),
	}
}

func (s *SessionStore) Create(queryText string, results []Result, summary string) *Conversation {
	conv := &Conversation{
		ID:        uuid.New().String(),
		Query:     queryText,
		Summary:   summary,
		Results:   slices.Clone(results),
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.cache.Add(conv.ID, conv)
	s.mu.Unlock()
	return conv.snapshot()
}

// Get returns a snapshot of the conversation. Mutating the returned value has
// no effect on the store.
func (s *SessionStore) Get(id string) (*Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	return conv.snapshot(), true
}

// Append records a discuss exchange on an existing conversation. Reports
// false when the conversation has already expired.
func (s *SessionStore) Append(id, question, answer string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.cache.Get(id)
	if !ok {
		return false
	}
	conv.Exchanges = append(conv.Exchanges, Exchange{Question: question, Answer: answer})
	return true
}

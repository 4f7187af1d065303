package content

import (
	"context"
	"fmt"
	"sync"
)

// MemStore is an in-memory content store, used in tests and when no database
// is configured.
type MemStore struct {
	mu        sync.RWMutex
	questions map[string]*Question
	articles  map[string]*Article
}

func NewMemStore() *MemStore {
	return &MemStore{
		questions: make(map[string]*Question),
		articles:  make(map[string]*Article),
	}
}

func (s *MemStore) Close() error { return nil }

func (s *MemStore) Question(ctx context.Context, id string) (*Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, fmt.Errorf("question %q: %w", id, ErrNotFound)
	}
	return q, nil
}

func (s *MemStore) Article(ctx context.Context, id string) (*Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[id]
	if !ok {
		return nil, fmt.Errorf("article %q: %w", id, ErrNotFound)
	}
	return a, nil
}

func (s *MemStore) PutQuestion(q *Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[q.ID] = q
}

func (s *MemStore) PutArticle(a *Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[a.ID] = a
}

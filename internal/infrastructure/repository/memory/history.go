package memory

import (
	"context"
	"sync"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

// HistoryStore keeps the session history in process memory. It is the
// default when no database is configured.
type HistoryStore struct {
	mu      sync.RWMutex
	records []domain.QueryRecord
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

func (s *HistoryStore) Append(_ context.Context, record domain.QueryRecord) error {
	record.Sources = append([]string(nil), record.Sources...)
	s.mu.Lock()
	s.records = append(s.records, record)
	s.mu.Unlock()
	return nil
}

func (s *HistoryStore) List(_ context.Context) ([]domain.QueryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.QueryRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *HistoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.records = nil
	s.mu.Unlock()
	return nil
}

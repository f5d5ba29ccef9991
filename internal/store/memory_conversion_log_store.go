package store

import (
	"context"
	"sync"

	"github.com/dunamismax/pageflow/internal/domain"
)

const defaultMemoryLogCapacity = 1000

// MemoryConversionLogStore keeps the most recent entries in a ring.
type MemoryConversionLogStore struct {
	mu       sync.RWMutex
	capacity int
	entries  []domain.ConversionLog
	byID     map[string]domain.ConversionLog
}

func NewMemoryConversionLogStore(capacity int) *MemoryConversionLogStore {
	if capacity <= 0 {
		capacity = defaultMemoryLogCapacity
	}
	return &MemoryConversionLogStore{
		capacity: capacity,
		entries:  make([]domain.ConversionLog, 0, capacity),
		byID:     make(map[string]domain.ConversionLog),
	}
}

func (s *MemoryConversionLogStore) Create(_ context.Context, entry domain.ConversionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == s.capacity {
		delete(s.byID, s.entries[0].RequestID)
		s.entries = append(s.entries[:0], s.entries[1:]...)
	}
	s.entries = append(s.entries, entry)
	s.byID[entry.RequestID] = entry
	return nil
}

func (s *MemoryConversionLogStore) Get(_ context.Context, requestID string) (domain.ConversionLog, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.byID[requestID]
	return entry, ok, nil
}

// Recent returns up to limit entries, newest first.
func (s *MemoryConversionLogStore) Recent(_ context.Context, limit int) ([]domain.ConversionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]domain.ConversionLog, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

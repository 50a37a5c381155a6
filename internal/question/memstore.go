package question

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// MemoryStore is an in-process Store, used for local play and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	questions []Question
	usage     map[int64]*atomic.Int64
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(questions ...Question) *MemoryStore {
	s := &MemoryStore{usage: make(map[int64]*atomic.Int64)}
	s.Add(questions...)
	return s
}

// Add inserts questions, keeping any usage count they carry.
func (s *MemoryStore) Add(questions ...Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range questions {
		counter := &atomic.Int64{}
		counter.Store(q.UsageCount)
		s.usage[q.ID] = counter
		s.questions = append(s.questions, q)
	}
}

func (s *MemoryStore) FetchCandidates(_ context.Context, constraints Constraints) ([]Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Question, 0, len(s.questions))
	for _, q := range s.questions {
		if constraints.Category != "" && q.Category != constraints.Category {
			continue
		}
		q.UsageCount = s.usage[q.ID].Load()
		out = append(out, q)
	}
	return out, nil
}

func (s *MemoryStore) IncrementUsage(_ context.Context, id int64) error {
	s.mu.RLock()
	counter, ok := s.usage[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("question %d not found", id)
	}
	counter.Add(1)
	return nil
}

// Usage returns the current usage count for a question.
func (s *MemoryStore) Usage(id int64) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if counter, ok := s.usage[id]; ok {
		return counter.Load()
	}
	return 0
}

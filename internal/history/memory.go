package history

import (
	"context"
	"sync"

	"github.com/Hemang2904/jewelbench-flux-gen/internal/domain"
)

const defaultMemoryCapacity = 128

// MemoryStore keeps the most recent run records in memory. It is the
// default when no database is configured.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	records  []domain.RunRecord
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity}
}

func (s *MemoryStore) Record(ctx context.Context, rec domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	if len(s.records) > s.capacity {
		s.records = s.records[len(s.records)-s.capacity:]
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (domain.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].ID == id {
			return s.records[i], nil
		}
	}
	return domain.RunRecord{}, domain.ErrNotFound
}

// List returns up to limit records, newest first.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	out := make([]domain.RunRecord, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)

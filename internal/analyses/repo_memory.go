package analyses

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps analyses in memory and is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	records []Analysis
	now     func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, now: time.Now}
}

// CreateAnalysis assigns the next id and stores the record.
func (s *MemoryStore) CreateAnalysis(ctx context.Context, in InsertAnalysis) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	in = in.normalized()

	s.mu.Lock()
	defer s.mu.Unlock()
	a := newAnalysis(s.nextID, in, s.now().UTC())
	s.nextID++
	s.records = append(s.records, a)
	return a.clone(), nil
}

// GetAnalysis returns an analysis by id.
func (s *MemoryStore) GetAnalysis(ctx context.Context, id int64) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	// ids are dense and start at 1.
	if id < 1 || id > int64(len(s.records)) {
		return Analysis{}, ErrNotFound
	}
	return s.records[id-1].clone(), nil
}

// GetLatestAnalysis returns the most recently created analysis.
func (s *MemoryStore) GetLatestAnalysis(ctx context.Context) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return Analysis{}, ErrNotFound
	}
	return s.records[len(s.records)-1].clone(), nil
}

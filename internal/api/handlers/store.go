package handlers

import (
	"sync"

	"grid-backtest/internal/backtest"

	"github.com/google/uuid"
)

// DefaultResultCapacity is how many reports a ResultStore keeps.
const DefaultResultCapacity = 64

// ResultStore keeps recent reports in memory, keyed by run id. The oldest
// report is evicted once the store is full.
type ResultStore struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	reports  map[string]*backtest.Report
}

func NewResultStore(capacity int) *ResultStore {
	if capacity <= 0 {
		capacity = DefaultResultCapacity
	}
	return &ResultStore{capacity: capacity, reports: make(map[string]*backtest.Report)}
}

// Put stores report under a fresh id and returns the id.
func (s *ResultStore) Put(report *backtest.Report) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.reports, oldest)
	}
	s.order = append(s.order, id)
	s.reports[id] = report
	return id
}

func (s *ResultStore) Get(id string) (*backtest.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	return r, ok
}

func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

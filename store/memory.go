package store

import (
	"context"
	"slices"
	"sync"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	evaluations map[string]Evaluation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.evaluations = make(map[string]Evaluation)
	return nil
}

func (s *MemoryStore) SaveEvaluation(_ context.Context, ev Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	ev.Diagnostics = append([]byte(nil), ev.Diagnostics...)
	s.evaluations[ev.RunID] = ev
	return nil
}

func (s *MemoryStore) GetEvaluation(_ context.Context, runID string) (Evaluation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return Evaluation{}, false, ErrNotInitialized
	}
	ev, ok := s.evaluations[runID]
	return ev, ok, nil
}

func (s *MemoryStore) ListEvaluations(_ context.Context, sweepID string) ([]Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	var out []Evaluation
	for _, ev := range s.evaluations {
		if ev.SweepID == sweepID {
			out = append(out, ev)
		}
	}
	sortByScore(out)
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// sortByScore orders evaluations best first, ties broken by run id.
func sortByScore(evs []Evaluation) {
	slices.SortFunc(evs, func(a, b Evaluation) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		case a.RunID < b.RunID:
			return -1
		case a.RunID > b.RunID:
			return 1
		}
		return 0
	})
}

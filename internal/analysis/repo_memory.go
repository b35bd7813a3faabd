package analysis

import (
	"context"
	"sync"
)

// MemoryRepo is a simple in-memory repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu         sync.Mutex
	analyses   []Analysis
	assistants []Assistant
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, a Analysis) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = int64(len(r.analyses) + 1)
	r.analyses = append(r.analyses, a)
	return a.ID, nil
}

func (r *MemoryRepo) ActiveAssistant(ctx context.Context) (Assistant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.assistants) - 1; i >= 0; i-- {
		if r.assistants[i].IsActive {
			return r.assistants[i], nil
		}
	}
	return Assistant{}, ErrNotFound
}

// AddAssistant registers a template; an active one replaces the previous active.
func (r *MemoryRepo) AddAssistant(a Assistant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.IsActive {
		for i := range r.assistants {
			r.assistants[i].IsActive = false
		}
	}
	a.ID = int64(len(r.assistants) + 1)
	r.assistants = append(r.assistants, a)
}

func (r *MemoryRepo) Analyses() []Analysis {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Analysis, len(r.analyses))
	copy(out, r.analyses)
	return out
}

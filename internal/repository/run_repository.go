package repository

import (
	"context"
	"sync"

	"github.com/telegrambots/mediabots/internal/domain"
)

// DefaultMaxRuns is how many runs are retained when no limit is given.
const DefaultMaxRuns = 500

// InMemoryRunRepository implements RunRepository using in-memory storage.
// Once more than maxRuns are stored, the oldest finished runs are evicted.
type InMemoryRunRepository struct {
	mu      sync.RWMutex
	runs    map[domain.RunID]*domain.Run
	order   []domain.RunID // insertion order, oldest first
	maxRuns int
}

// NewInMemoryRunRepository creates a new in-memory run repository.
func NewInMemoryRunRepository(maxRuns int) *InMemoryRunRepository {
	if maxRuns <= 0 {
		maxRuns = DefaultMaxRuns
	}
	return &InMemoryRunRepository{
		runs:    make(map[domain.RunID]*domain.Run),
		order:   make([]domain.RunID, 0),
		maxRuns: maxRuns,
	}
}

// Create stores a new run.
func (r *InMemoryRunRepository) Create(ctx context.Context, run *domain.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; !ok {
		r.order = append(r.order, run.ID)
	}
	stored := *run
	r.runs[run.ID] = &stored
	r.evict()

	return nil
}

// Finish applies the outcome to a stored run.
func (r *InMemoryRunRepository) Finish(ctx context.Context, id domain.RunID, outcome domain.PipelineOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return domain.ErrRunNotFound
	}
	run.Finish(outcome)
	r.evict()

	return nil
}

// Get retrieves a copy of a run by ID.
func (r *InMemoryRunRepository) Get(ctx context.Context, id domain.RunID) (*domain.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

// List returns copies of up to limit runs, most recent first.
func (r *InMemoryRunRepository) List(ctx context.Context, limit int) ([]*domain.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.order)
	if limit > 0 && limit < n {
		n = limit
	}

	result := make([]*domain.Run, 0, n)
	for i := len(r.order) - 1; i >= 0 && len(result) < n; i-- {
		cp := *r.runs[r.order[i]]
		result = append(result, &cp)
	}
	return result, nil
}

// Stats returns run statistics.
func (r *InMemoryRunRepository) Stats(ctx context.Context) (*RunStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &RunStats{Total: len(r.runs)}
	for _, run := range r.runs {
		switch run.Status {
		case domain.RunStatusRunning:
			stats.Running++
		case domain.RunStatusSucceeded:
			stats.Succeeded++
		case domain.RunStatusFailed:
			stats.Failed++
		}
	}

	return stats, nil
}

// Clear removes all runs (useful for testing).
func (r *InMemoryRunRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs = make(map[domain.RunID]*domain.Run)
	r.order = make([]domain.RunID, 0)
}

// evict drops the oldest finished runs over the limit. Running runs are kept.
// Caller must hold the write lock.
func (r *InMemoryRunRepository) evict() {
	excess := len(r.order) - r.maxRuns
	if excess <= 0 {
		return
	}

	kept := r.order[:0]
	for _, id := range r.order {
		if excess > 0 && r.runs[id].Status != domain.RunStatusRunning {
			delete(r.runs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
}

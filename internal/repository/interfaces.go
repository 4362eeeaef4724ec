package repository

import (
	"context"

	"github.com/telegrambots/mediabots/internal/domain"
)

// RunRepository records pipeline runs.
type RunRepository interface {
	// Create stores a new running run.
	Create(ctx context.Context, run *domain.Run) error

	// Finish applies the outcome to a stored run.
	Finish(ctx context.Context, id domain.RunID, outcome domain.PipelineOutcome) error

	// Get retrieves a run by ID.
	Get(ctx context.Context, id domain.RunID) (*domain.Run, error)

	// List returns up to limit runs, most recent first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]*domain.Run, error)

	// Stats returns run statistics.
	Stats(ctx context.Context) (*RunStats, error)
}

// RunStats contains run statistics.
type RunStats struct {
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

package repository

import (
	"context"

	"github.com/iconidentify/mediabot/internal/domain"
)

// JobRepository tracks download jobs.
type JobRepository interface {
	// Create records a new job.
	Create(ctx context.Context, job *domain.Job) error

	// Update modifies job state.
	Update(ctx context.Context, job *domain.Job) error

	// Get retrieves a job by ID.
	Get(ctx context.Context, id domain.JobID) (*domain.Job, error)

	// List returns jobs newest first, optionally filtered by status.
	List(ctx context.Context, status *domain.JobStatus, limit int) ([]*domain.Job, error)

	// Stats returns job statistics.
	Stats(ctx context.Context) (*JobStats, error)
}

// JobStats contains job statistics.
type JobStats struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Rejected   int `json:"rejected"`
}

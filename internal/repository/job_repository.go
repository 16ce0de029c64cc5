package repository

import (
	"context"
	"sync"

	"github.com/iconidentify/mediabot/internal/domain"
)

// DefaultMaxJobs is how many jobs are retained when no limit is given.
const DefaultMaxJobs = 1000

// InMemoryJobRepository implements JobRepository using in-memory storage.
// Once more than maxJobs are held, the oldest finished jobs are evicted.
type InMemoryJobRepository struct {
	mu      sync.RWMutex
	jobs    map[domain.JobID]*domain.Job
	order   []domain.JobID // creation order, oldest first
	maxJobs int
}

// NewInMemoryJobRepository creates a new in-memory job repository.
func NewInMemoryJobRepository(maxJobs int) *InMemoryJobRepository {
	if maxJobs <= 0 {
		maxJobs = DefaultMaxJobs
	}
	return &InMemoryJobRepository{
		jobs:    make(map[domain.JobID]*domain.Job),
		order:   make([]domain.JobID, 0),
		maxJobs: maxJobs,
	}
}

// Create records a new job.
func (r *InMemoryJobRepository) Create(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; !ok {
		r.order = append(r.order, job.ID)
	}
	r.jobs[job.ID] = copyJob(job)
	r.evict()

	return nil
}

// Update modifies job state.
func (r *InMemoryJobRepository) Update(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; !ok {
		return domain.ErrJobNotFound
	}
	r.jobs[job.ID] = copyJob(job)
	r.evict()

	return nil
}

// Get retrieves a job by ID.
func (r *InMemoryJobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return copyJob(job), nil
}

// List returns jobs newest first. A limit of zero or less returns all.
func (r *InMemoryJobRepository) List(ctx context.Context, status *domain.JobStatus, limit int) ([]*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Job, 0)
	for i := len(r.order) - 1; i >= 0; i-- {
		job := r.jobs[r.order[i]]
		if status != nil && job.Status != *status {
			continue
		}
		out = append(out, copyJob(job))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Stats returns job statistics.
func (r *InMemoryJobRepository) Stats(ctx context.Context) (*JobStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &JobStats{}
	for _, job := range r.jobs {
		switch job.Status {
		case domain.JobStatusQueued:
			stats.Queued++
		case domain.JobStatusProcessing:
			stats.Processing++
		case domain.JobStatusCompleted:
			stats.Completed++
		case domain.JobStatusFailed:
			stats.Failed++
		case domain.JobStatusRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}

// evict drops the oldest terminal jobs while over capacity. Must hold mu.
func (r *InMemoryJobRepository) evict() {
	if len(r.order) <= r.maxJobs {
		return
	}

	excess := len(r.order) - r.maxJobs
	kept := r.order[:0]
	for _, id := range r.order {
		if excess > 0 && r.jobs[id].Status.IsTerminal() {
			delete(r.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
}

func copyJob(job *domain.Job) *domain.Job {
	c := *job
	return &c
}

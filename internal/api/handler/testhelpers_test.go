package handler

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/iconidentify/mediabot/internal/domain"
	"github.com/iconidentify/mediabot/internal/repository"
	"github.com/iconidentify/mediabot/internal/worker"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockJobRepository is a test implementation of repository.JobRepository.
type mockJobRepository struct {
	mu       sync.Mutex
	stats    *repository.JobStats
	statsErr error
	listErr  error
	jobs     map[domain.JobID]*domain.Job

	lastStatus *domain.JobStatus
	lastLimit  int
}

func newMockJobRepository() *mockJobRepository {
	return &mockJobRepository{
		stats: &repository.JobStats{},
		jobs:  make(map[domain.JobID]*domain.Job),
	}
}

func (m *mockJobRepository) Create(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *mockJobRepository) Update(ctx context.Context, job *domain.Job) error {
	return m.Create(ctx, job)
}

func (m *mockJobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		return job, nil
	}
	return nil, domain.ErrJobNotFound
}

func (m *mockJobRepository) List(ctx context.Context, status *domain.JobStatus, limit int) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastStatus = status
	m.lastLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*domain.Job
	for _, job := range m.jobs {
		if status == nil || job.Status == *status {
			out = append(out, job)
		}
	}
	return out, nil
}

func (m *mockJobRepository) Stats(ctx context.Context) (*repository.JobStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return m.stats, nil
}

type mockPool struct {
	stats worker.Stats
}

func (p *mockPool) Stats() worker.Stats { return p.stats }

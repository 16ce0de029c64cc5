package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/mediabot/internal/domain"
	"github.com/iconidentify/mediabot/internal/repository"
)

// JobHandler exposes tracked download jobs.
type JobHandler struct {
	jobRepo repository.JobRepository
	logger  *slog.Logger
}

// NewJobHandler creates a new job handler.
func NewJobHandler(jobRepo repository.JobRepository, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		jobRepo: jobRepo,
		logger:  logger,
	}
}

// JobListResponse wraps a job listing.
type JobListResponse struct {
	Jobs  []*domain.Job `json:"jobs"`
	Count int           `json:"count"`
}

// List handles GET /api/v1/jobs?status=failed&limit=20
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	var status *domain.JobStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.JobStatus(s)
		switch st {
		case domain.JobStatusQueued, domain.JobStatusProcessing, domain.JobStatusCompleted,
			domain.JobStatusFailed, domain.JobStatusRejected:
			status = &st
		default:
			writeError(w, http.StatusBadRequest, "unknown status")
			return
		}
	}

	jobs, err := h.jobRepo.List(r.Context(), status, intParam(r, "limit", 50))
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []*domain.Job{}
	}
	writeJSON(w, http.StatusOK, JobListResponse{Jobs: jobs, Count: len(jobs)})
}

// Get handles GET /api/v1/jobs/{jobID}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := domain.JobID(chi.URLParam(r, "jobID"))

	job, err := h.jobRepo.Get(r.Context(), id)
	if errors.Is(err, domain.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get job", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

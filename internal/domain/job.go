package domain

import (
	"time"
)

// JobID is a unique identifier for a job.
type JobID string

// String returns the string representation of the JobID.
func (id JobID) String() string {
	return string(id)
}

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRejected   JobStatus = "rejected"
)

// IsTerminal reports whether no further transitions are expected.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusRejected:
		return true
	}
	return false
}

// Job tracks one download request for the lifetime of the process.
type Job struct {
	ID        JobID       `json:"id"`
	ChatID    ChatID      `json:"chat_id"`
	URL       string      `json:"url"`
	Platform  string      `json:"platform,omitempty"`
	Status    JobStatus   `json:"status"`
	Outcome   OutcomeKind `json:"outcome,omitempty"`
	LastError string      `json:"last_error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewJob creates a queued job for req.
func NewJob(req DownloadRequest) *Job {
	now := time.Now()
	return &Job{
		ID:        req.JobID,
		ChatID:    req.ChatID,
		URL:       req.URL,
		Platform:  req.Platform,
		Status:    JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkProcessing updates the job status to processing.
func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.UpdatedAt = time.Now()
}

// MarkFinished records the outcome of the job.
func (j *Job) MarkFinished(outcome DeliveryOutcome) {
	j.Outcome = outcome.Kind
	j.UpdatedAt = time.Now()

	if outcome.Kind != OutcomeFailed {
		j.Status = JobStatusCompleted
		return
	}

	j.Status = JobStatusFailed
	if outcome.Err != nil {
		j.LastError = outcome.Err.Error()
		if ClassOf(outcome.Err) == ErrorClassRejection {
			j.Status = JobStatusRejected
		}
	}
}

package domain

import "errors"

// Domain errors.
var (
	// ErrInvalidURL is returned when a message does not carry an http(s) URL.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrUnsupportedPlatform is returned when the URL host is not allow-listed.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrArtifactMissing is returned when the engine reports success but no output file exists.
	ErrArtifactMissing = errors.New("downloaded artifact not found")

	// ErrAmbiguousResult is returned when a fetch produced both a video and images.
	ErrAmbiguousResult = errors.New("fetch produced both video and images")

	// ErrNoProbe is returned when a fetch is attempted without probe metadata.
	ErrNoProbe = errors.New("fetch job has no probe")

	// ErrNoAssets is returned when an image collection has no downloadable assets.
	ErrNoAssets = errors.New("no image assets to download")

	// ErrStorageFull is returned when there is insufficient storage space.
	ErrStorageFull = errors.New("insufficient storage space")

	// ErrJobNotFound is returned when a job cannot be found.
	ErrJobNotFound = errors.New("job not found")

	// ErrDownloadFailed is returned when an asset download fails.
	ErrDownloadFailed = errors.New("download failed")

	// ErrURLExpired is returned when a signed asset URL has expired.
	ErrURLExpired = errors.New("asset URL has expired")

	// ErrRateLimited is returned when rate limited by the source platform.
	ErrRateLimited = errors.New("rate limited")
)

// ErrorClass groups job failures by who is responsible for them.
type ErrorClass string

const (
	ErrorClassRejection ErrorClass = "rejection"
	ErrorClassRetrieval ErrorClass = "retrieval"
	ErrorClassArtifact  ErrorClass = "artifact_missing"
	ErrorClassDelivery  ErrorClass = "delivery"
	ErrorClassInternal  ErrorClass = "internal"
)

// JobError wraps an error with job context.
type JobError struct {
	JobID JobID
	Op    string
	Class ErrorClass
	Err   error
}

func (e *JobError) Error() string {
	if e.JobID != "" {
		return e.Op + " [" + e.JobID.String() + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// NewJobError creates a new JobError.
func NewJobError(jobID JobID, op string, class ErrorClass, err error) *JobError {
	return &JobError{
		JobID: jobID,
		Op:    op,
		Class: class,
		Err:   err,
	}
}

// ClassOf reports the class of err. Errors that are not a JobError are
// classified by sentinel, falling back to ErrorClassInternal.
func ClassOf(err error) ErrorClass {
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return jobErr.Class
	}
	switch {
	case errors.Is(err, ErrInvalidURL), errors.Is(err, ErrUnsupportedPlatform):
		return ErrorClassRejection
	case errors.Is(err, ErrArtifactMissing):
		return ErrorClassArtifact
	default:
		return ErrorClassInternal
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/iconidentify/mediabot/internal/domain"
)

// OrchestratorConfig configures a download run.
type OrchestratorConfig struct {
	// TempRoot is where per-job working directories are created.
	TempRoot string

	// FormatSelector is passed to the engine for video fetches.
	FormatSelector string

	// JobTimeout bounds one run end to end. Zero disables the bound.
	JobTimeout time.Duration

	// MinFreeBytes is the free space required at TempRoot. Zero disables the check.
	MinFreeBytes int64

	Progress ProgressConfig
}

// Orchestrator owns the lifecycle of one download request: gate, probe,
// classify, fetch, resolve, deliver and clean up.
type Orchestrator struct {
	cfg        OrchestratorConfig
	allow      *AllowList
	engine     Engine
	strategist *Strategist
	messenger  Messenger
	events     domain.EventEmitter
	logger     *slog.Logger

	diskUsage func(path string) (DiskStats, error)
}

// NewOrchestrator creates a new orchestrator. events may be nil.
func NewOrchestrator(
	cfg OrchestratorConfig,
	allow *AllowList,
	engine Engine,
	strategist *Strategist,
	messenger Messenger,
	events domain.EventEmitter,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.TempRoot == "" {
		cfg.TempRoot = os.TempDir()
	}
	if events == nil {
		events = noopEmitter{}
	}
	return &Orchestrator{
		cfg:        cfg,
		allow:      allow,
		engine:     engine,
		strategist: strategist,
		messenger:  messenger,
		events:     events,
		logger:     logger,
		diskUsage:  DiskUsage,
	}
}

type fetchDone struct {
	hint string
	err  error
}

// Run processes req to completion and returns what the chat saw. The
// working directory is removed on every path out of Run.
func (o *Orchestrator) Run(ctx context.Context, req domain.DownloadRequest) domain.DeliveryOutcome {
	logger := o.logger.With("job_id", req.JobID, "chat_id", req.ChatID)

	platform, err := o.allow.ValidateURL(req.URL)
	if err != nil {
		logger.Info("request rejected", "url", req.URL, "reason", err)
		o.events.EmitInfo(domain.EventCategoryJob, req.JobID, "request rejected", domain.EventMetadata{"url": req.URL})
		return o.fail(ctx, logger, req, domain.NewJobError(req.JobID, "validate", domain.ErrorClassRejection, err))
	}
	if req.Platform == "" {
		req.Platform = platform
	}

	if o.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.JobTimeout)
		defer cancel()
	}

	if err := o.checkStorage(logger); err != nil {
		o.events.EmitError(domain.EventCategoryStorage, req.JobID, "temp storage low", nil)
		return o.fail(ctx, logger, req, domain.NewJobError(req.JobID, "check storage", domain.ErrorClassInternal, err))
	}

	workDir, err := os.MkdirTemp(o.cfg.TempRoot, "job-*")
	if err != nil {
		return o.fail(ctx, logger, req, domain.NewJobError(req.JobID, "create work dir", domain.ErrorClassInternal, err))
	}
	defer o.cleanup(logger, workDir)

	logger = logger.With("work_dir", workDir, "platform", req.Platform)
	logger.Info("job started", "url", req.URL)
	o.events.EmitInfo(domain.EventCategoryJob, req.JobID, "job started", domain.EventMetadata{
		"url":      req.URL,
		"platform": req.Platform,
	})

	if !req.HasStatusMessage() {
		id, err := o.messenger.SendText(ctx, req.ChatID, MsgFetchingDetails)
		if err != nil {
			logger.Warn("failed to post status message", "error", err)
		}
		req.StatusMessageID = id
	}

	probe, err := o.engine.Probe(ctx, req.URL)
	if err != nil {
		return o.fail(ctx, logger, req, domain.NewJobError(req.JobID, "probe", domain.ErrorClassRetrieval, err))
	}

	kind := Classify(probe)
	probe.Kind = kind
	logger = logger.With("kind", kind.String())
	logger.Info("media probed", "title", probe.Title, "formats", len(probe.Formats), "items", probe.ItemCount)

	hint, err := o.fetch(ctx, logger, req, domain.FetchJob{
		WorkDir:        workDir,
		Kind:           kind,
		FormatSelector: o.cfg.FormatSelector,
		Probe:          probe,
	})
	if err != nil {
		class := domain.ErrorClassRetrieval
		if ctx.Err() != nil {
			class = domain.ErrorClassInternal
		}
		return o.fail(ctx, logger, req, domain.NewJobError(req.JobID, "fetch", class, err))
	}

	result, err := ResolveArtifacts(workDir, kind, probe, hint)
	if err != nil {
		logger.Error("artifact missing after fetch",
			"hint", hint,
			"probe_id", probe.ID,
			"error", err,
		)
		return o.fail(ctx, logger, req, domain.NewJobError(req.JobID, "resolve artifacts", domain.ErrorClassArtifact, err))
	}

	o.status(ctx, logger, req, sendingText(kind))

	outcome := o.strategist.Deliver(ctx, req, result)
	if outcome.Kind == domain.OutcomeFailed {
		return o.fail(ctx, logger, req, outcome.Err)
	}

	logger.Info("job finished", "outcome", outcome.Kind, "size", outcome.Size)
	o.events.EmitInfo(domain.EventCategoryDelivery, req.JobID, "job finished", domain.EventMetadata{
		"outcome": string(outcome.Kind),
		"size":    outcome.Size,
	})
	return outcome
}

// fetch runs the engine on its own goroutine. Progress flows through the
// reporter's channel; the result comes back on done.
func (o *Orchestrator) fetch(ctx context.Context, logger *slog.Logger, req domain.DownloadRequest, job domain.FetchJob) (string, error) {
	reporter := NewProgressReporter(ctx, o.cfg.Progress, o.messenger, req, logger)
	reporter.Start()
	job.Progress = reporter

	done := make(chan fetchDone, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchDone{err: fmt.Errorf("engine panic: %v", r)}
			}
		}()
		hint, err := o.engine.Fetch(ctx, req.URL, job)
		done <- fetchDone{hint: hint, err: err}
	}()

	res := <-done
	reporter.Close()

	edits, dropped := reporter.Stats()
	logger.Debug("fetch returned", "progress_edits", edits, "progress_dropped", dropped, "error", res.err)
	return res.hint, res.err
}

func (o *Orchestrator) checkStorage(logger *slog.Logger) error {
	if o.cfg.MinFreeBytes <= 0 {
		return nil
	}
	stats, err := o.diskUsage(o.cfg.TempRoot)
	if err != nil {
		logger.Warn("could not read free space", "path", o.cfg.TempRoot, "error", err)
		return nil
	}
	if stats.FreeBytes < o.cfg.MinFreeBytes {
		return fmt.Errorf("%s free at %s: %w", domain.FormatMB(stats.FreeBytes), o.cfg.TempRoot, domain.ErrStorageFull)
	}
	return nil
}

func (o *Orchestrator) cleanup(logger *slog.Logger, workDir string) {
	if err := os.RemoveAll(workDir); err != nil {
		logger.Error("failed to remove work dir", "error", err)
		return
	}
	logger.Debug("work dir removed")
}

// fail reports err to the chat and returns a failed outcome.
func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, req domain.DownloadRequest, err error) domain.DeliveryOutcome {
	class := domain.ClassOf(err)
	if class != domain.ErrorClassRejection {
		logger.Error("job failed", "class", class, "error", err)
		o.events.EmitError(categoryFor(class), req.JobID, "job failed", domain.EventMetadata{
			"class": string(class),
			"error": err.Error(),
		})
	}

	// The job context may already be done; the chat still gets told.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
	}

	text := UserMessage(err)
	if req.HasStatusMessage() {
		o.status(ctx, logger, req, text)
	} else if _, sendErr := o.messenger.SendText(ctx, req.ChatID, text); sendErr != nil {
		logger.Warn("failed to send error reply", "error", sendErr)
	}
	return domain.Failed(err)
}

func (o *Orchestrator) status(ctx context.Context, logger *slog.Logger, req domain.DownloadRequest, text string) {
	if !req.HasStatusMessage() {
		return
	}
	if err := o.messenger.EditText(ctx, req.ChatID, req.StatusMessageID, text); err != nil {
		logger.Warn("failed to update status message", "error", err)
	}
}

func sendingText(kind domain.ContentKind) string {
	if kind == domain.ContentImageCollection {
		return MsgSendingImages
	}
	return MsgSending
}

func categoryFor(class domain.ErrorClass) domain.EventCategory {
	switch class {
	case domain.ErrorClassRetrieval:
		return domain.EventCategoryRetrieval
	case domain.ErrorClassDelivery:
		return domain.EventCategoryDelivery
	default:
		return domain.EventCategoryJob
	}
}

// IsRejection reports whether err is a user input rejection.
func IsRejection(err error) bool {
	return errors.Is(err, domain.ErrInvalidURL) || errors.Is(err, domain.ErrUnsupportedPlatform)
}

type noopEmitter struct{}

func (noopEmitter) Emit(domain.Event) {}
func (noopEmitter) EmitInfo(domain.EventCategory, domain.JobID, string, domain.EventMetadata) {}
func (noopEmitter) EmitWarning(domain.EventCategory, domain.JobID, string, domain.EventMetadata) {}
func (noopEmitter) EmitError(domain.EventCategory, domain.JobID, string, domain.EventMetadata) {}

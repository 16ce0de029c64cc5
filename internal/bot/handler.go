package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/iconidentify/mediabot/internal/domain"
	"github.com/iconidentify/mediabot/internal/repository"
	"github.com/iconidentify/mediabot/internal/service"
	"github.com/iconidentify/mediabot/internal/worker"
)

// Runner processes one download request to completion.
type Runner interface {
	Run(ctx context.Context, req domain.DownloadRequest) domain.DeliveryOutcome
}

// Submitter schedules work off the update loop.
type Submitter interface {
	Submit(name string, task worker.Task) error
}

// Handler turns chat updates into download jobs.
type Handler struct {
	messenger service.Messenger
	allow     *service.AllowList
	runner    Runner
	pool      Submitter
	jobs      repository.JobRepository
	events    domain.EventEmitter
	logger    *slog.Logger

	newID func() string
}

// NewHandler creates a new update handler.
func NewHandler(
	messenger service.Messenger,
	allow *service.AllowList,
	runner Runner,
	pool Submitter,
	jobs repository.JobRepository,
	events domain.EventEmitter,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		messenger: messenger,
		allow:     allow,
		runner:    runner,
		pool:      pool,
		jobs:      jobs,
		events:    events,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// Serve handles updates until ctx is done or the channel closes.
func (h *Handler) Serve(ctx context.Context, updates <-chan tgbotapi.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate handles a single update. A panic is logged and swallowed so
// the loop keeps running.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic handling update",
				"update_id", update.UpdateID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	msg := update.Message
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		return
	}
	chatID := domain.ChatID(msg.Chat.ID)

	if msg.IsCommand() {
		h.handleCommand(ctx, chatID, msg.Command())
		return
	}
	h.handleURL(ctx, chatID, msg.Text)
}

func (h *Handler) handleCommand(ctx context.Context, chatID domain.ChatID, command string) {
	var text string
	switch command {
	case "start":
		text = service.MsgWelcome
	case "help":
		text = service.HelpText(h.allow.Platforms())
	default:
		return
	}
	if _, err := h.messenger.SendText(ctx, chatID, text); err != nil {
		h.logger.Warn("failed to reply to command", "command", command, "chat_id", chatID, "error", err)
	}
}

func (h *Handler) handleURL(ctx context.Context, chatID domain.ChatID, text string) {
	url := strings.TrimSpace(text)
	logger := h.logger.With("chat_id", chatID)

	platform, err := h.allow.ValidateURL(url)
	if err != nil {
		logger.Info("request rejected", "url", url, "reason", err)
		if _, sendErr := h.messenger.SendText(ctx, chatID, service.UserMessage(err)); sendErr != nil {
			logger.Warn("failed to send rejection", "error", sendErr)
		}
		return
	}

	statusID, err := h.messenger.SendText(ctx, chatID, service.MsgFetchingDetails)
	if err != nil {
		logger.Warn("failed to post status message", "error", err)
	}

	req := domain.DownloadRequest{
		JobID:           domain.JobID(h.newID()),
		URL:             url,
		Platform:        platform,
		ChatID:          chatID,
		StatusMessageID: statusID,
		ReceivedAt:      time.Now(),
	}
	logger = logger.With("job_id", req.JobID)

	job := domain.NewJob(req)
	if err := h.jobs.Create(ctx, job); err != nil {
		logger.Warn("failed to record job", "error", err)
	}

	err = h.pool.Submit(fmt.Sprintf("download %s", req.JobID), func(taskCtx context.Context) {
		h.process(taskCtx, job, req)
	})
	if err == nil {
		logger.Info("job queued", "url", url, "platform", platform)
		return
	}

	logger.Warn("job not accepted", "error", err)
	h.events.EmitWarning(domain.EventCategoryJob, req.JobID, "job not accepted", domain.EventMetadata{
		"error": err.Error(),
	})
	if errors.Is(err, worker.ErrPoolFull) || errors.Is(err, worker.ErrPoolStopped) {
		h.reply(ctx, logger, req, service.MsgBusy)
	} else {
		h.reply(ctx, logger, req, service.MsgErrUnexpected)
	}

	job.MarkFinished(domain.Failed(domain.NewJobError(req.JobID, "submit", domain.ErrorClassInternal, err)))
	if err := h.jobs.Update(ctx, job); err != nil {
		logger.Warn("failed to update job", "error", err)
	}
}

// process runs on a pool worker.
func (h *Handler) process(ctx context.Context, job *domain.Job, req domain.DownloadRequest) {
	job.MarkProcessing()
	if err := h.jobs.Update(ctx, job); err != nil {
		h.logger.Warn("failed to update job", "job_id", job.ID, "error", err)
	}

	outcome := h.runner.Run(ctx, req)

	job.MarkFinished(outcome)
	if err := h.jobs.Update(context.WithoutCancel(ctx), job); err != nil {
		h.logger.Warn("failed to update job", "job_id", job.ID, "error", err)
	}
}

// reply edits the status message when there is one, otherwise sends text.
func (h *Handler) reply(ctx context.Context, logger *slog.Logger, req domain.DownloadRequest, text string) {
	if req.HasStatusMessage() {
		if err := h.messenger.EditText(ctx, req.ChatID, req.StatusMessageID, text); err != nil {
			logger.Warn("failed to update status message", "error", err)
		}
		return
	}
	if _, err := h.messenger.SendText(ctx, req.ChatID, text); err != nil {
		logger.Warn("failed to send reply", "error", err)
	}
}

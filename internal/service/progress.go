package service

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iconidentify/mediabot/internal/domain"
)

// ProgressConfig configures progress throttling.
type ProgressConfig struct {
	// Window is the minimum spacing between visible updates. Default: 2.5s
	Window time.Duration

	// Step is the percent delta that bypasses the window. Default: 10
	Step float64

	// Buffer is the depth of the hand-off channel. Default: 64
	Buffer int

	// PhaseSendTimeout bounds how long Report waits to enqueue a phase change.
	// Default: 1s
	PhaseSendTimeout time.Duration
}

func (c ProgressConfig) withDefaults() ProgressConfig {
	if c.Window <= 0 {
		c.Window = 2500 * time.Millisecond
	}
	if c.Step <= 0 {
		c.Step = 10
	}
	if c.Buffer <= 0 {
		c.Buffer = 64
	}
	if c.PhaseSendTimeout <= 0 {
		c.PhaseSendTimeout = time.Second
	}
	return c
}

// ProgressReporter turns raw engine progress into status-message edits.
// Report is called from the fetch goroutine and only enqueues; a single
// consumer goroutine throttles and performs the edits, so updates reach the
// transport in emission order.
type ProgressReporter struct {
	cfg       ProgressConfig
	messenger Messenger
	chatID    domain.ChatID
	msgID     domain.MessageID
	logger    *slog.Logger
	now       func() time.Time

	ctx    context.Context
	events chan domain.ProgressEvent
	done   chan struct{}

	mu      sync.RWMutex
	started bool
	closed  bool
	dropped atomic.Int64

	// consumer state
	phase   domain.ProgressPhase
	lastAt  time.Time
	lastPct float64
	edits   int
}

// NewProgressReporter creates a reporter for the status message of req.
// Call Start before handing it to the engine and Close when the fetch returns.
func NewProgressReporter(
	ctx context.Context,
	cfg ProgressConfig,
	messenger Messenger,
	req domain.DownloadRequest,
	logger *slog.Logger,
) *ProgressReporter {
	cfg = cfg.withDefaults()
	return &ProgressReporter{
		cfg:       cfg,
		messenger: messenger,
		chatID:    req.ChatID,
		msgID:     req.StatusMessageID,
		logger:    logger,
		now:       time.Now,
		ctx:       ctx,
		events:    make(chan domain.ProgressEvent, cfg.Buffer),
		done:      make(chan struct{}),
		phase:     domain.PhaseDownloading,
	}
}

// Start posts the initial 0% status and launches the consumer.
func (r *ProgressReporter) Start() {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	r.edit(MsgStarting)
	r.lastAt = r.now()
	r.lastPct = 0
	go r.run()
}

// Report enqueues ev without blocking on the transport. Downloading events
// are dropped when the buffer is full; phase changes wait briefly for room.
func (r *ProgressReporter) Report(ev domain.ProgressEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	if ev.Phase == domain.PhaseDownloading {
		select {
		case r.events <- ev:
		default:
			r.dropped.Add(1)
		}
		return
	}

	timer := time.NewTimer(r.cfg.PhaseSendTimeout)
	defer timer.Stop()
	select {
	case r.events <- ev:
	case <-timer.C:
		r.logger.Warn("progress phase change dropped", "phase", ev.Phase)
	}
}

// Close stops accepting events, drains the queue and waits for the consumer.
func (r *ProgressReporter) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.events)
	started := r.started
	r.mu.Unlock()

	if !started {
		close(r.done)
		return
	}
	<-r.done
}

// Stats returns the number of attempted edits, including the initial one,
// and the number of dropped events. It waits for Close.
func (r *ProgressReporter) Stats() (edits int, dropped int64) {
	<-r.done
	return r.edits, r.dropped.Load()
}

func (r *ProgressReporter) run() {
	defer close(r.done)
	for ev := range r.events {
		r.handle(ev)
	}
}

func (r *ProgressReporter) handle(ev domain.ProgressEvent) {
	switch ev.Phase {
	case domain.PhaseMerging:
		if r.phase != domain.PhaseMerging {
			r.phase = domain.PhaseMerging
			r.edit(MsgMerging)
			r.lastAt = r.now()
		}
	case domain.PhaseFinished:
		// The orchestrator renders the final status.
	case domain.PhaseDownloading:
		if r.phase != domain.PhaseDownloading || ev.Percent < r.lastPct {
			return
		}
		now := r.now()
		if now.Sub(r.lastAt) < r.cfg.Window && math.Abs(ev.Percent-r.lastPct) <= r.cfg.Step {
			return
		}
		r.edit(ProgressText(ev.Percent))
		r.lastAt = now
		r.lastPct = ev.Percent
	}
}

func (r *ProgressReporter) edit(text string) {
	r.edits++
	if r.msgID == 0 {
		return
	}
	if err := r.messenger.EditText(r.ctx, r.chatID, r.msgID, text); err != nil {
		r.logger.Warn("failed to update progress message", "error", err)
	}
}

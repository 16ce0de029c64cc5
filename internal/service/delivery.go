package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/iconidentify/mediabot/internal/domain"
)

// DeliveryConfig configures the Strategist.
type DeliveryConfig struct {
	LimitBytes  int64
	AlbumSize   int
	Caption     string
	OverflowDir string

	// InspectTimeout bounds the ffprobe call made before an inline send.
	InspectTimeout time.Duration
}

// Strategist picks how a fetched result reaches the chat.
type Strategist struct {
	cfg       DeliveryConfig
	messenger Messenger
	inspector VideoInspector
	logger    *slog.Logger
}

// NewStrategist creates a delivery strategist. inspector may be nil, in which
// case videos are sent without duration and dimensions.
func NewStrategist(cfg DeliveryConfig, messenger Messenger, inspector VideoInspector, logger *slog.Logger) *Strategist {
	if cfg.AlbumSize <= 0 || cfg.AlbumSize > 10 {
		cfg.AlbumSize = 10
	}
	if cfg.InspectTimeout <= 0 {
		cfg.InspectTimeout = 10 * time.Second
	}
	return &Strategist{
		cfg:       cfg,
		messenger: messenger,
		inspector: inspector,
		logger:    logger,
	}
}

// Deliver sends result to the chat of req. Every outcome other than Failed
// is followed by removal of the status message.
func (s *Strategist) Deliver(ctx context.Context, req domain.DownloadRequest, result *domain.FetchResult) domain.DeliveryOutcome {
	logger := s.logger.With("job_id", req.JobID, "chat_id", req.ChatID)

	if err := result.Validate(); err != nil {
		return domain.Failed(domain.NewJobError(req.JobID, "deliver", domain.ErrorClassArtifact, err))
	}

	var outcome domain.DeliveryOutcome
	if result.Video != nil {
		outcome = s.deliverVideo(ctx, logger, req, *result.Video)
	} else {
		outcome = s.deliverImages(ctx, logger, req, result.Images)
	}

	if outcome.Kind != domain.OutcomeFailed && req.HasStatusMessage() {
		if err := s.messenger.Delete(ctx, req.ChatID, req.StatusMessageID); err != nil {
			logger.Warn("failed to delete status message", "error", err)
		}
	}
	return outcome
}

func (s *Strategist) deliverVideo(ctx context.Context, logger *slog.Logger, req domain.DownloadRequest, video domain.Artifact) domain.DeliveryOutcome {
	size := video.Size
	if size <= 0 {
		if st, err := os.Stat(video.Path); err == nil {
			size = st.Size()
		}
	}

	if size > s.cfg.LimitBytes {
		return s.archiveOversized(ctx, logger, req, video.Path, size)
	}

	upload := domain.VideoUpload{
		Path:              video.Path,
		Caption:           s.cfg.Caption,
		SupportsStreaming: true,
	}
	s.inspect(ctx, logger, &upload)

	logger.Info("sending video", "path", video.Path, "size", domain.FormatMB(size))
	if err := s.messenger.SendVideo(ctx, req.ChatID, upload); err != nil {
		logger.Error("failed to send video", "error", err)
		return domain.Failed(domain.NewJobError(req.JobID, "send video", domain.ErrorClassDelivery, err))
	}

	out := domain.Sent(size)
	out.Limit = s.cfg.LimitBytes
	out.ItemsSent = 1
	return out
}

func (s *Strategist) inspect(ctx context.Context, logger *slog.Logger, upload *domain.VideoUpload) {
	if s.inspector == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.InspectTimeout)
	defer cancel()

	info, err := s.inspector.GetVideoInfo(ctx, upload.Path)
	if err != nil {
		logger.Debug("video inspection failed", "error", err)
		return
	}
	upload.Duration = int(info.Duration + 0.5)
}

func (s *Strategist) archiveOversized(ctx context.Context, logger *slog.Logger, req domain.DownloadRequest, path string, size int64) domain.DeliveryOutcome {
	dest, err := moveToOverflow(path, s.cfg.OverflowDir)
	if err != nil {
		// The notice still goes out; an unmoved file is removed with the work dir.
		logger.Warn("failed to archive oversized file", "path", path, "error", err)
	}

	out := domain.ArchivedOversized(size, s.cfg.LimitBytes, dest)
	logger.Info("file exceeds upload limit",
		"size", domain.FormatMB(size),
		"limit", domain.FormatMB(s.cfg.LimitBytes),
		"archived_path", dest,
	)

	if _, err := s.messenger.SendMarkdown(ctx, req.ChatID, out.OversizedNotice()); err != nil {
		logger.Error("failed to send oversized notice", "error", err)
	}
	return out
}

func (s *Strategist) deliverImages(ctx context.Context, logger *slog.Logger, req domain.DownloadRequest, images []domain.Artifact) domain.DeliveryOutcome {
	out := domain.DeliveryOutcome{Kind: domain.OutcomeSent, Limit: s.cfg.LimitBytes}
	var lastErr error

	for start := 0; start < len(images); start += s.cfg.AlbumSize {
		end := min(start+s.cfg.AlbumSize, len(images))

		items := make([]domain.AlbumItem, 0, end-start)
		for i := start; i < end; i++ {
			item := domain.AlbumItem{Path: images[i].Path}
			if i == 0 {
				item.Caption = s.cfg.Caption
			}
			items = append(items, item)
		}

		if err := s.messenger.SendAlbum(ctx, req.ChatID, items); err != nil {
			out.ChunksFailed++
			lastErr = err
			logger.Error("failed to send album chunk",
				"chunk", start/s.cfg.AlbumSize,
				"items", len(items),
				"error", err,
			)
			continue
		}

		out.ChunksSent++
		out.ItemsSent += len(items)
		for i := start; i < end; i++ {
			out.Size += images[i].Size
		}
	}

	if out.ChunksSent == 0 {
		err := fmt.Errorf("all %d album chunks failed: %w", out.ChunksFailed, lastErr)
		failed := domain.Failed(domain.NewJobError(req.JobID, "send album", domain.ErrorClassDelivery, err))
		failed.ChunksFailed = out.ChunksFailed
		return failed
	}

	logger.Info("album delivered",
		"items", out.ItemsSent,
		"chunks_sent", out.ChunksSent,
		"chunks_failed", out.ChunksFailed,
	)
	return out
}

// moveToOverflow moves path into dir, copying when a rename crosses devices.
func moveToOverflow(path, dir string) (string, error) {
	if dir == "" {
		return "", errors.New("no overflow directory configured")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create overflow dir: %w", err)
	}

	dest := filepath.Join(dir, filepath.Base(path))
	if err := os.Rename(path, dest); err == nil {
		return dest, nil
	}

	if err := copyFile(path, dest); err != nil {
		return "", fmt.Errorf("copy to overflow: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return dest, fmt.Errorf("remove source: %w", err)
	}
	return dest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

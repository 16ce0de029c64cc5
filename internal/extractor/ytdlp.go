// Package extractor drives yt-dlp for metadata and video downloads and hands
// image posts to the asset downloader.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/iconidentify/mediabot/internal/domain"
)

// Config configures the yt-dlp adapter.
type Config struct {
	// YtDlpPath overrides the yt-dlp executable. Empty uses PATH.
	YtDlpPath string

	// FFmpegPath is passed to yt-dlp for merging and remuxing.
	FFmpegPath string

	SocketTimeout time.Duration
	Retries       int

	// ProgressInterval is how often yt-dlp progress is sampled. Default: 500ms
	ProgressInterval time.Duration
}

// AssetSaver downloads image assets into a directory.
type AssetSaver interface {
	SaveAssets(ctx context.Context, dir, prefix string, assets []domain.Asset, progress domain.ProgressSink) ([]string, error)
}

// YtDlp implements the extraction engine on top of yt-dlp.
type YtDlp struct {
	cfg    Config
	assets AssetSaver
	logger *slog.Logger
}

// New creates a yt-dlp engine. Image collections are fetched through assets.
func New(cfg Config, assets AssetSaver, logger *slog.Logger) *YtDlp {
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 500 * time.Millisecond
	}
	return &YtDlp{cfg: cfg, assets: assets, logger: logger}
}

func (y *YtDlp) command() *ytdlp.Command {
	cmd := ytdlp.New().NoCheckCertificates()
	if y.cfg.YtDlpPath != "" {
		cmd.SetExecutable(y.cfg.YtDlpPath)
	}
	if y.cfg.SocketTimeout > 0 {
		cmd.SocketTimeout(y.cfg.SocketTimeout.Seconds())
	}
	return cmd
}

// Probe dumps metadata for url without downloading anything.
func (y *YtDlp) Probe(ctx context.Context, url string) (*domain.MediaProbe, error) {
	start := time.Now()
	res, err := y.command().DumpSingleJSON().SkipDownload().Run(ctx, url)
	if err != nil {
		return nil, runError("probe", res, err)
	}

	probe, err := parseProbe([]byte(res.Stdout))
	if err != nil {
		return nil, err
	}

	y.logger.Debug("yt-dlp probe complete",
		"id", probe.ID,
		"formats", len(probe.Formats),
		"entries", len(probe.Entries),
		"assets", len(probe.Assets),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return probe, nil
}

// Fetch downloads the media described by job into job.WorkDir.
func (y *YtDlp) Fetch(ctx context.Context, url string, job domain.FetchJob) (string, error) {
	if job.Probe == nil {
		return "", domain.ErrNoProbe
	}

	switch job.Kind {
	case domain.ContentVideo:
		return y.fetchVideo(ctx, url, job)
	case domain.ContentImageCollection:
		return y.fetchImages(ctx, job)
	default:
		return "", fmt.Errorf("cannot fetch %s content", job.Kind)
	}
}

func (y *YtDlp) fetchVideo(ctx context.Context, url string, job domain.FetchJob) (string, error) {
	cmd := y.command().
		NoPlaylist().
		Format(job.FormatSelector).
		Output(filepath.Join(job.WorkDir, "%(id)s.%(ext)s")).
		RemuxVideo("mp4")
	if y.cfg.FFmpegPath != "" {
		cmd.FFmpegLocation(y.cfg.FFmpegPath)
	}
	if y.cfg.Retries > 0 {
		cmd.Retries(strconv.Itoa(y.cfg.Retries))
	}

	var (
		mu      sync.Mutex
		hint    string
		streams = newStreamProgress(job.Probe.StreamCount)
	)
	cmd.ProgressFunc(y.cfg.ProgressInterval, func(update ytdlp.ProgressUpdate) {
		mu.Lock()
		if update.Info != nil && update.Info.Filename != nil {
			hint = *update.Info.Filename
		}
		ev, ok := streams.event(update)
		mu.Unlock()
		if ok && job.Progress != nil {
			job.Progress.Report(ev)
		}
	})

	res, err := cmd.Run(ctx, url)
	if err != nil {
		return "", runError("download", res, err)
	}

	mu.Lock()
	defer mu.Unlock()
	if hint == "" {
		if info, err := res.GetExtractedInfo(); err == nil && len(info) > 0 && info[0].Filename != nil {
			hint = *info[0].Filename
		}
	}
	return hint, nil
}

func (y *YtDlp) fetchImages(ctx context.Context, job domain.FetchJob) (string, error) {
	if len(job.Probe.Assets) == 0 {
		return "", domain.ErrNoAssets
	}
	paths, err := y.assets.SaveAssets(ctx, job.WorkDir, safeName(job.Probe.ID), job.Probe.Assets, job.Progress)
	if err != nil {
		return "", err
	}
	if job.Progress != nil {
		job.Progress.Report(domain.ProgressEvent{Phase: domain.PhaseFinished, Percent: 100})
	}
	y.logger.Debug("image assets saved", "count", len(paths))
	return "", nil
}

// runError folds the yt-dlp diagnostics into err so callers can classify
// the failure from its text.
func runError(op string, res *ytdlp.Result, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("yt-dlp %s: %w", op, err)
	}
	if res != nil {
		if detail := lastErrorLine(res.Stderr); detail != "" {
			return fmt.Errorf("yt-dlp %s: %w: %s", op, err, detail)
		}
	}
	return fmt.Errorf("yt-dlp %s: %w", op, err)
}

// lastErrorLine returns the last "ERROR:" line of stderr, or its last
// non-empty line.
func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	last := ""
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "ERROR:") {
			return line
		}
		if last == "" {
			last = line
		}
	}
	return last
}

func safeName(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
		if b.Len() >= 40 {
			break
		}
	}
	if b.Len() == 0 {
		return "item"
	}
	return b.String()
}

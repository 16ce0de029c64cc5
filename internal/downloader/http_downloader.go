package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iconidentify/mediabot/internal/config"
	"github.com/iconidentify/mediabot/internal/domain"
)

// HTTPDownloader implements Downloader using HTTP requests.
type HTTPDownloader struct {
	client      *http.Client
	userAgent   string
	retry       RetryConfig
	readTimeout time.Duration
	logger      *slog.Logger
}

var _ Downloader = (*HTTPDownloader)(nil)

// NewHTTPDownloader creates a downloader for image assets.
func NewHTTPDownloader(cfg config.FetchConfig, logger *slog.Logger) *HTTPDownloader {
	retry := DefaultRetryConfig()
	if cfg.Retries > 0 {
		retry.MaxAttempts = cfg.Retries
	}
	if cfg.RetryDelay > 0 {
		retry.InitialDelay = cfg.RetryDelay
	}
	if cfg.MaxRetryDelay > 0 {
		retry.MaxDelay = cfg.MaxRetryDelay
	}

	return &HTTPDownloader{
		// No overall timeout; the body reader cancels a request that goes
		// quiet for SocketTimeout.
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		userAgent:   cfg.UserAgent,
		retry:       retry,
		readTimeout: cfg.SocketTimeout,
		logger:      logger,
	}
}

// Download fetches url with retry. Expired URLs are not retried.
func (d *HTTPDownloader) Download(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	type body struct {
		rc   io.ReadCloser
		size int64
	}

	res, err := RetryWithCheck(ctx, d.retry, func() (body, error) {
		rc, size, err := d.downloadOnce(ctx, url)
		return body{rc, size}, err
	}, isRetryableError)
	if err != nil {
		return nil, 0, fmt.Errorf("download failed after retries: %w", err)
	}
	return res.rc, res.size, nil
}

func (d *HTTPDownloader) downloadOnce(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := d.client.Do(req)
	if err != nil {
		cancel()
		return nil, 0, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		switch resp.StatusCode {
		case http.StatusForbidden, http.StatusUnauthorized:
			return nil, 0, domain.ErrURLExpired
		case http.StatusTooManyRequests:
			return nil, 0, domain.ErrRateLimited
		default:
			return nil, 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
	}

	return newStallReader(resp.Body, d.readTimeout, cancel), resp.ContentLength, nil
}

// SaveAssets downloads assets into dir as NNN_<prefix>.<ext>, so lexical
// order of the names is the order of the post.
func (d *HTTPDownloader) SaveAssets(ctx context.Context, dir, prefix string, assets []domain.Asset, progress domain.ProgressSink) ([]string, error) {
	if len(assets) == 0 {
		return nil, domain.ErrNoAssets
	}

	paths := make([]string, 0, len(assets))
	for i, asset := range assets {
		if err := ctx.Err(); err != nil {
			return paths, err
		}

		dest := filepath.Join(dir, fmt.Sprintf("%03d_%s%s", i, prefix, assetExt(asset)))
		written, err := d.saveOne(ctx, asset.URL, dest)
		if err != nil {
			return paths, fmt.Errorf("asset %d of %d: %w: %w", i+1, len(assets), domain.ErrDownloadFailed, err)
		}
		paths = append(paths, dest)

		d.logger.Debug("asset saved", "index", i, "path", dest, "bytes", written)
		if progress != nil {
			progress.Report(domain.ProgressEvent{
				Phase:   domain.PhaseDownloading,
				Percent: float64(i+1) / float64(len(assets)) * 100,
				Label:   filepath.Base(dest),
			})
		}
	}
	return paths, nil
}

func (d *HTTPDownloader) saveOne(ctx context.Context, url, dest string) (int64, error) {
	rc, _, err := d.Download(ctx, url)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	n, err := io.Copy(f, rc)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dest)
		return 0, fmt.Errorf("write file: %w", err)
	}
	return n, nil
}

// assetExt picks a file extension from the asset metadata or its URL path.
func assetExt(a domain.Asset) string {
	if ext := strings.TrimPrefix(strings.ToLower(a.Ext), "."); ext != "" {
		return "." + ext
	}
	p := a.URL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if ext := strings.ToLower(path.Ext(p)); ext != "" && len(ext) <= 5 {
		return ext
	}
	return ".jpg"
}

func isRetryableError(err error) bool {
	if errors.Is(err, domain.ErrURLExpired) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// errStalled is returned once a body has delivered no data for the read timeout.
var errStalled = errors.New("download stalled")

// stallReader cancels the request when no data arrives for timeout, which
// also unblocks a Read that is waiting on the connection.
type stallReader struct {
	reader  io.ReadCloser
	timeout time.Duration
	cancel  context.CancelFunc
	timer   *time.Timer
	stalled atomic.Bool
	once    sync.Once
}

func newStallReader(r io.ReadCloser, timeout time.Duration, cancel context.CancelFunc) *stallReader {
	s := &stallReader{reader: r, timeout: timeout, cancel: cancel}
	if timeout > 0 {
		s.timer = time.AfterFunc(timeout, func() {
			s.stalled.Store(true)
			cancel()
		})
	}
	return s
}

func (s *stallReader) Read(buf []byte) (int, error) {
	n, err := s.reader.Read(buf)
	if s.stalled.Load() {
		return n, fmt.Errorf("%w: no data received for %v", errStalled, s.timeout)
	}
	if n > 0 && s.timer != nil {
		s.timer.Reset(s.timeout)
	}
	return n, err
}

func (s *stallReader) Close() error {
	var err error
	s.once.Do(func() {
		if s.timer != nil {
			s.timer.Stop()
		}
		err = s.reader.Close()
		s.cancel()
	})
	return err
}

package downloader

import (
	"context"
	"io"

	"github.com/iconidentify/mediabot/internal/domain"
)

// Downloader fetches remote assets over HTTP.
type Downloader interface {
	// Download fetches url and returns the body and its size (-1 if unknown).
	// Caller is responsible for closing the reader.
	Download(ctx context.Context, url string) (io.ReadCloser, int64, error)

	// SaveAssets writes every asset into dir, in order, and returns the paths.
	SaveAssets(ctx context.Context, dir, prefix string, assets []domain.Asset, progress domain.ProgressSink) ([]string, error)
}

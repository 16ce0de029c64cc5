package service

import (
	"context"

	"github.com/iconidentify/mediabot/internal/domain"
	"github.com/iconidentify/mediabot/pkg/ffmpeg"
)

// Messenger is the outbound side of the chat transport.
type Messenger interface {
	// SendText posts a plain text message and returns its identity.
	SendText(ctx context.Context, chatID domain.ChatID, text string) (domain.MessageID, error)

	// SendMarkdown posts a message rendered with Markdown.
	SendMarkdown(ctx context.Context, chatID domain.ChatID, text string) (domain.MessageID, error)

	// EditText replaces the text of an existing message.
	EditText(ctx context.Context, chatID domain.ChatID, msgID domain.MessageID, text string) error

	// Delete removes a message.
	Delete(ctx context.Context, chatID domain.ChatID, msgID domain.MessageID) error

	// SendVideo uploads a video file.
	SendVideo(ctx context.Context, chatID domain.ChatID, video domain.VideoUpload) error

	// SendAlbum uploads up to ten images as one group, in order.
	SendAlbum(ctx context.Context, chatID domain.ChatID, items []domain.AlbumItem) error
}

// Engine is the extraction engine boundary.
type Engine interface {
	// Probe fetches metadata only.
	Probe(ctx context.Context, url string) (*domain.MediaProbe, error)

	// Fetch materializes media into job.WorkDir, reporting progress to
	// job.Progress. It returns the path the engine believes it wrote, which
	// may be empty or stale after remuxing.
	Fetch(ctx context.Context, url string, job domain.FetchJob) (string, error)
}

// VideoInspector reads stream metadata from a local video file.
type VideoInspector interface {
	GetVideoInfo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
}

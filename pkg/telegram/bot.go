// Package telegram adapts the Telegram Bot API to the bot's messenger.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iconidentify/mediabot/internal/domain"
)

// Config for creating a new Bot.
type Config struct {
	Token string
	Debug bool

	// Endpoint is the Bot API URL template. Defaults to tgbotapi.APIEndpoint.
	Endpoint string

	// RequestTimeout bounds a single API call, uploads included.
	RequestTimeout time.Duration
}

// Bot wraps the Telegram Bot API.
type Bot struct {
	api    *tgbotapi.BotAPI
	logger *slog.Logger
}

// NewBot creates a bot and verifies the token with getMe.
func NewBot(cfg Config, logger *slog.Logger) (*Bot, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 100 * time.Second
	}

	client := &http.Client{Timeout: cfg.RequestTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.Endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = cfg.Debug

	return &Bot{api: api, logger: logger}, nil
}

// Username returns the bot's @username.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// SendText sends a plain text message.
func (b *Bot) SendText(ctx context.Context, chatID domain.ChatID, text string) (domain.MessageID, error) {
	return b.sendMessage(ctx, tgbotapi.NewMessage(int64(chatID), text))
}

// SendMarkdown sends a message with Markdown formatting.
func (b *Bot) SendMarkdown(ctx context.Context, chatID domain.ChatID, text string) (domain.MessageID, error) {
	msg := tgbotapi.NewMessage(int64(chatID), text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return b.sendMessage(ctx, msg)
}

func (b *Bot) sendMessage(ctx context.Context, msg tgbotapi.MessageConfig) (domain.MessageID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return domain.MessageID(sent.MessageID), nil
}

// EditText edits a message text. Edits that leave the text unchanged are
// not errors.
func (b *Bot) EditText(ctx context.Context, chatID domain.ChatID, msgID domain.MessageID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.api.Request(tgbotapi.NewEditMessageText(int64(chatID), int(msgID), text))
	if err != nil && !isNotModified(err) {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// Delete deletes a message.
func (b *Bot) Delete(ctx context.Context, chatID domain.ChatID, msgID domain.MessageID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(int64(chatID), int(msgID))); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// SendVideo uploads a local video file.
func (b *Bot) SendVideo(ctx context.Context, chatID domain.ChatID, video domain.VideoUpload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewVideo(int64(chatID), tgbotapi.FilePath(video.Path))
	msg.Caption = video.Caption
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.SupportsStreaming = video.SupportsStreaming
	msg.Duration = video.Duration

	start := time.Now()
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send video: %w", err)
	}
	b.logger.Debug("video uploaded",
		"chat_id", chatID,
		"duration", video.Duration,
		"upload_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// SendAlbum uploads up to ten photos as one group. Telegram rejects groups
// of one, so a single item is sent as a plain photo.
func (b *Bot) SendAlbum(ctx context.Context, chatID domain.ChatID, items []domain.AlbumItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch {
	case len(items) == 0:
		return nil
	case len(items) > 10:
		return fmt.Errorf("album of %d items exceeds the limit of 10", len(items))
	case len(items) == 1:
		photo := tgbotapi.NewPhoto(int64(chatID), tgbotapi.FilePath(items[0].Path))
		photo.Caption = items[0].Caption
		photo.ParseMode = tgbotapi.ModeMarkdown
		if _, err := b.api.Send(photo); err != nil {
			return fmt.Errorf("send photo: %w", err)
		}
		return nil
	}

	media := make([]interface{}, 0, len(items))
	for _, item := range items {
		photo := tgbotapi.NewInputMediaPhoto(tgbotapi.FilePath(item.Path))
		if item.Caption != "" {
			photo.Caption = item.Caption
			photo.ParseMode = tgbotapi.ModeMarkdown
		}
		media = append(media, photo)
	}

	if _, err := b.api.SendMediaGroup(tgbotapi.NewMediaGroup(int64(chatID), media)); err != nil {
		return fmt.Errorf("send media group: %w", err)
	}
	return nil
}

// Updates starts long polling and returns the update channel.
func (b *Bot) Updates(timeout int) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeout
	return b.api.GetUpdatesChan(u)
}

// StopReceivingUpdates stops long polling.
func (b *Bot) StopReceivingUpdates() {
	b.api.StopReceivingUpdates()
}

func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}

package domain

import "time"

// ChatID identifies a chat session on the messaging transport.
type ChatID int64

// MessageID identifies a message within a chat.
type MessageID int

// DownloadRequest is one URL submitted from a chat. It is immutable and
// scoped to a single job.
type DownloadRequest struct {
	JobID           JobID
	URL             string
	Platform        string
	ChatID          ChatID
	StatusMessageID MessageID
	ReceivedAt      time.Time
}

// HasStatusMessage reports whether a status message was posted for the request.
func (r DownloadRequest) HasStatusMessage() bool {
	return r.StatusMessageID != 0
}

package domain

import "fmt"

// OutcomeKind tags a DeliveryOutcome.
type OutcomeKind string

const (
	OutcomeSent              OutcomeKind = "sent"
	OutcomeArchivedOversized OutcomeKind = "archived_oversized"
	OutcomeFailed            OutcomeKind = "failed"
)

const bytesPerMB = 1024 * 1024

// DeliveryOutcome is the result of a job as seen by the chat.
type DeliveryOutcome struct {
	Kind OutcomeKind

	// Size and Limit are set for archived outcomes and for inline videos.
	Size  int64
	Limit int64

	// ArchivedPath is where an oversized artifact was moved.
	ArchivedPath string

	// Album bookkeeping for image collections.
	ItemsSent    int
	ChunksSent   int
	ChunksFailed int

	// Err is set for failed outcomes.
	Err error
}

// Sent returns an outcome for media delivered inline.
func Sent(size int64) DeliveryOutcome {
	return DeliveryOutcome{Kind: OutcomeSent, Size: size}
}

// ArchivedOversized returns an outcome for media too large to send.
func ArchivedOversized(size, limit int64, path string) DeliveryOutcome {
	return DeliveryOutcome{
		Kind:         OutcomeArchivedOversized,
		Size:         size,
		Limit:        limit,
		ArchivedPath: path,
	}
}

// Failed returns an outcome wrapping err.
func Failed(err error) DeliveryOutcome {
	return DeliveryOutcome{Kind: OutcomeFailed, Err: err}
}

// OversizedNotice renders the message shown when an artifact exceeds the limit.
func (o DeliveryOutcome) OversizedNotice() string {
	return fmt.Sprintf(
		"✅ Download complete, but file is too large to send.\n\n"+
			"**Size:** %s\n"+
			"**Limit:** %d MB\n\n"+
			"File saved to bot's server (storage is temporary).",
		FormatMB(o.Size), o.Limit/bytesPerMB,
	)
}

// FormatMB renders a byte count in mebibytes with two decimals.
func FormatMB(size int64) string {
	return fmt.Sprintf("%.2f MB", float64(size)/bytesPerMB)
}

// MBToBytes converts a mebibyte count to bytes.
func MBToBytes(mb int64) int64 {
	return mb * bytesPerMB
}

package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iconidentify/mediabot/internal/domain"
)

// Status and reply texts shown in the chat.
const (
	MsgWelcome         = "Send me a video URL from YouTube, TikTok, or Facebook, and I'll download it!"
	MsgInvalidURL      = "Please send a valid URL starting with http:// or https://."
	MsgUnsupported     = "Sorry, that platform is not supported yet."
	MsgBusy            = "⏳ Too many downloads in progress. Please try again in a minute."
	MsgFetchingDetails = "Fetching video details... 🔄"
	MsgStarting        = "Download starting... 0% ⏳"
	MsgMerging         = "Download finished. Merging video and audio... 🔄"
	MsgSending         = "Download finished. Sending video... ✅"
	MsgSendingImages   = "Download finished. Sending images... ✅"

	MsgErrBlocked     = "❌ YouTube is blocking the download. Please try a different video."
	MsgErrRetrieval   = "❌ Error downloading video. The URL might be private or invalid."
	MsgErrUnavailable = "❌ This video is unavailable."
	MsgErrRateLimited = "❌ The platform is rate limiting downloads. Please try again later."
	MsgErrUnexpected  = "❌ An unexpected error occurred. Please try again."
	MsgErrDelivery    = "❌ Could not deliver the media. Please try again."
)

// ProgressText renders the downloading status line.
func ProgressText(percent float64) string {
	return fmt.Sprintf("Download in progress... %.1f%% ⏳", percent)
}

// HelpText lists the supported platforms.
func HelpText(platforms []string) string {
	return MsgWelcome + "\n\nSupported: " + strings.Join(platforms, ", ")
}

// RetrievalReason is the user-facing cause of a retrieval failure.
type RetrievalReason string

const (
	ReasonBlocked     RetrievalReason = "blocked"
	ReasonPrivate     RetrievalReason = "private"
	ReasonUnavailable RetrievalReason = "unavailable"
	ReasonRateLimited RetrievalReason = "rate_limited"
	ReasonGeneric     RetrievalReason = "generic"
)

// retrievalRules is checked in order against the lower-cased error text
// with any URLs removed.
var retrievalRules = []struct {
	needles []string
	reason  RetrievalReason
}{
	{[]string{"not a bot"}, ReasonBlocked},
	{[]string{"private"}, ReasonPrivate},
	{[]string{"unavailable"}, ReasonUnavailable},
	{[]string{"rate limit", "too many requests"}, ReasonRateLimited},
}

// ClassifyRetrieval maps upstream error text to a RetrievalReason. The
// match is best effort; unknown text yields ReasonGeneric.
func ClassifyRetrieval(err error) RetrievalReason {
	if err == nil {
		return ReasonGeneric
	}
	if errors.Is(err, domain.ErrRateLimited) {
		return ReasonRateLimited
	}

	text := stripURLs(strings.ToLower(err.Error()))
	for _, rule := range retrievalRules {
		for _, needle := range rule.needles {
			if strings.Contains(text, needle) {
				return rule.reason
			}
		}
	}
	return ReasonGeneric
}

// stripURLs drops every whitespace-separated token that holds a URL, so a
// path segment like /private/ in a CDN link cannot match a rule.
func stripURLs(text string) string {
	fields := strings.Fields(text)
	kept := fields[:0]
	for _, f := range fields {
		if !strings.Contains(f, "://") {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

// UserMessage picks the chat text for a failed job.
func UserMessage(err error) string {
	switch domain.ClassOf(err) {
	case domain.ErrorClassRejection:
		if errors.Is(err, domain.ErrInvalidURL) {
			return MsgInvalidURL
		}
		return MsgUnsupported
	case domain.ErrorClassRetrieval:
		switch ClassifyRetrieval(err) {
		case ReasonBlocked:
			return MsgErrBlocked
		case ReasonUnavailable:
			return MsgErrUnavailable
		case ReasonRateLimited:
			return MsgErrRateLimited
		default:
			return MsgErrRetrieval
		}
	case domain.ErrorClassDelivery:
		return MsgErrDelivery
	default:
		return MsgErrUnexpected
	}
}

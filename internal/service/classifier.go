package service

import "github.com/iconidentify/mediabot/internal/domain"

// Classify decides the content kind of a probe. The first matching rule
// wins: a multi-item post without a playable stream is an image
// collection, any format with a video codec is a video, and anything
// else falls back to a single-image collection.
func Classify(probe *domain.MediaProbe) domain.ContentKind {
	if probe == nil {
		return domain.ContentUnsupported
	}

	if probe.IsMultiItem() && !hasPlayableStream(probe) {
		return domain.ContentImageCollection
	}

	for _, f := range probe.Formats {
		if f.HasVideo() {
			return domain.ContentVideo
		}
	}

	return domain.ContentImageCollection
}

func hasPlayableStream(probe *domain.MediaProbe) bool {
	for _, e := range probe.Entries {
		if e.Playable {
			return true
		}
	}
	for _, f := range probe.Formats {
		if f.HasVideo() {
			return true
		}
	}
	return false
}

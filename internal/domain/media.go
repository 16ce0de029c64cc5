package domain

import "strings"

// ContentKind is the closed set of content types a probe can resolve to.
type ContentKind int

const (
	ContentUnsupported ContentKind = iota
	ContentVideo
	ContentImageCollection
)

// String returns the string representation of the ContentKind.
func (k ContentKind) String() string {
	switch k {
	case ContentVideo:
		return "video"
	case ContentImageCollection:
		return "image_collection"
	default:
		return "unsupported"
	}
}

// FormatDescriptor is one stream format offered by the source platform.
type FormatDescriptor struct {
	FormatID string
	Ext      string
	VCodec   string
	ACodec   string
	Height   int
	FPS      float64
	URL      string
}

// HasVideo reports whether the format carries a video stream.
func (f FormatDescriptor) HasVideo() bool {
	return codecPresent(f.VCodec)
}

// HasAudio reports whether the format carries an audio stream.
func (f FormatDescriptor) HasAudio() bool {
	return codecPresent(f.ACodec)
}

func codecPresent(codec string) bool {
	c := strings.TrimSpace(strings.ToLower(codec))
	return c != "" && c != "none"
}

// ProbeEntry is one item of a multi-item post.
type ProbeEntry struct {
	ID       string
	URL      string
	Ext      string
	Playable bool
}

// Asset is a still image with a direct download URL.
type Asset struct {
	URL string
	Ext string
}

// MediaProbe is the metadata returned by a single probe call.
type MediaProbe struct {
	ID        string
	Title     string
	Kind      ContentKind
	Formats   []FormatDescriptor
	ItemCount int
	Entries   []ProbeEntry
	Assets    []Asset

	// StreamCount is how many streams yt-dlp selected for download, more
	// than one when they are merged afterwards. Zero if unknown.
	StreamCount int
}

// IsMultiItem reports whether the probe describes more than one item.
func (p *MediaProbe) IsMultiItem() bool {
	return p.ItemCount > 1 || len(p.Entries) > 1
}

// Artifact is a single materialized output file.
type Artifact struct {
	Path string
	Size int64
}

// FetchJob describes one fetch into an exclusive working directory.
type FetchJob struct {
	WorkDir        string
	Kind           ContentKind
	FormatSelector string
	Probe          *MediaProbe
	Progress       ProgressSink
}

// FetchResult holds what a fetch produced. Exactly one of Video or
// Images is set on success.
type FetchResult struct {
	Video  *Artifact
	Images []Artifact
	Probe  *MediaProbe
}

// Validate checks the one-of invariant between Video and Images.
func (r *FetchResult) Validate() error {
	hasVideo := r.Video != nil
	hasImages := len(r.Images) > 0
	switch {
	case hasVideo && hasImages:
		return ErrAmbiguousResult
	case !hasVideo && !hasImages:
		return ErrArtifactMissing
	}
	return nil
}

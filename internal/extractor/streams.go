package extractor

import (
	"path/filepath"

	"github.com/lrstanley/go-ytdlp"

	"github.com/iconidentify/mediabot/internal/domain"
)

// streamProgress folds per-stream yt-dlp updates into one job-level
// percentage. A merged format is downloaded one stream after the other and
// each stream reports from 0 to 100, so the raw numbers restart.
type streamProgress struct {
	total    int
	finished map[string]bool
	last     float64
	merging  bool
}

// newStreamProgress expects the given number of streams. The count grows
// if yt-dlp starts more streams than expected.
func newStreamProgress(expected int) *streamProgress {
	return &streamProgress{
		total:    max(expected, 1),
		finished: make(map[string]bool),
	}
}

// event maps one update to a progress event. Percentages never decrease.
// The merging phase is reported once, when the last of several streams
// finishes.
func (s *streamProgress) event(u ytdlp.ProgressUpdate) (domain.ProgressEvent, bool) {
	if u.Info != nil && len(u.Info.RequestedFormats) > s.total {
		s.total = len(u.Info.RequestedFormats)
	}
	name := streamName(u)

	switch u.Status {
	case ytdlp.ProgressStatusDownloading:
		if s.merging || s.finished[name] {
			return domain.ProgressEvent{}, false
		}
		if len(s.finished) >= s.total {
			s.total = len(s.finished) + 1
		}
		var pct float64
		if u.TotalBytes > 0 {
			pct = min(float64(u.DownloadedBytes)/float64(u.TotalBytes)*100, 100)
		}
		return s.downloading(name, (float64(len(s.finished))*100+pct)/float64(s.total)), true

	case ytdlp.ProgressStatusFinished:
		if s.merging || s.finished[name] {
			return domain.ProgressEvent{}, false
		}
		s.finished[name] = true
		if len(s.finished) < s.total {
			return s.downloading(name, float64(len(s.finished))*100/float64(s.total)), true
		}
		if s.total > 1 {
			s.merging = true
			return domain.ProgressEvent{Phase: domain.PhaseMerging}, true
		}
		return domain.ProgressEvent{Phase: domain.PhaseFinished, Percent: 100}, true

	case ytdlp.ProgressStatusPostProcessing:
		if s.merging {
			return domain.ProgressEvent{}, false
		}
		s.merging = true
		return domain.ProgressEvent{Phase: domain.PhaseMerging}, true
	}
	return domain.ProgressEvent{}, false
}

func (s *streamProgress) downloading(name string, pct float64) domain.ProgressEvent {
	s.last = max(s.last, pct)
	ev := domain.ProgressEvent{Phase: domain.PhaseDownloading, Percent: s.last}
	if name != "" {
		ev.Label = filepath.Base(name)
	}
	return ev
}

func streamName(u ytdlp.ProgressUpdate) string {
	if u.Filename != "" {
		return u.Filename
	}
	if u.Info != nil && u.Info.Filename != nil {
		return *u.Info.Filename
	}
	return ""
}

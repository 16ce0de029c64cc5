package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// =============================================================================
// Job Tests
// =============================================================================

func TestJobID_String(t *testing.T) {
	if got := JobID("job-123").String(); got != "job-123" {
		t.Errorf("JobID.String() = %q, want %q", got, "job-123")
	}
}

func TestNewJob(t *testing.T) {
	job := NewJob(DownloadRequest{JobID: "job-1", ChatID: 42, URL: "https://youtu.be/x", Platform: "youtube"})

	if job.ID != "job-1" || job.ChatID != 42 || job.Platform != "youtube" {
		t.Errorf("job = %+v", job)
	}
	if job.Status != JobStatusQueued {
		t.Errorf("Status = %s, want queued", job.Status)
	}
	if job.CreatedAt.IsZero() || !job.CreatedAt.Equal(job.UpdatedAt) {
		t.Error("timestamps should be set and equal")
	}
}

func TestJob_MarkFinished(t *testing.T) {
	tests := []struct {
		name       string
		outcome    DeliveryOutcome
		wantStatus JobStatus
		wantError  bool
	}{
		{"sent", Sent(10), JobStatusCompleted, false},
		{"archived", ArchivedOversized(100, 50, "/d/x.mp4"), JobStatusCompleted, false},
		{"failed", Failed(NewJobError("j", "fetch", ErrorClassRetrieval, errors.New("boom"))), JobStatusFailed, true},
		{"rejected", Failed(fmt.Errorf("%w: %q", ErrInvalidURL, "hi")), JobStatusRejected, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewJob(DownloadRequest{JobID: "j"})
			job.MarkProcessing()
			if job.Status != JobStatusProcessing {
				t.Fatalf("Status = %s, want processing", job.Status)
			}

			job.MarkFinished(tt.outcome)
			if job.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", job.Status, tt.wantStatus)
			}
			if job.Outcome != tt.outcome.Kind {
				t.Errorf("Outcome = %s, want %s", job.Outcome, tt.outcome.Kind)
			}
			if (job.LastError != "") != tt.wantError {
				t.Errorf("LastError = %q", job.LastError)
			}
			if !job.Status.IsTerminal() {
				t.Error("finished job should be terminal")
			}
		})
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   bool
	}{
		{JobStatusQueued, false},
		{JobStatusProcessing, false},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
		{JobStatusRejected, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

// =============================================================================
// Media Tests
// =============================================================================

func TestContentKind_String(t *testing.T) {
	tests := []struct {
		kind ContentKind
		want string
	}{
		{ContentUnsupported, "unsupported"},
		{ContentVideo, "video"},
		{ContentImageCollection, "image_collection"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ContentKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestFormatDescriptor_Codecs(t *testing.T) {
	tests := []struct {
		name      string
		format    FormatDescriptor
		wantVideo bool
		wantAudio bool
	}{
		{"muxed", FormatDescriptor{VCodec: "avc1", ACodec: "mp4a"}, true, true},
		{"video only", FormatDescriptor{VCodec: "vp9", ACodec: "none"}, true, false},
		{"audio only", FormatDescriptor{VCodec: "none", ACodec: "opus"}, false, true},
		{"unknown", FormatDescriptor{}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.format.HasVideo() != tt.wantVideo || tt.format.HasAudio() != tt.wantAudio {
				t.Errorf("HasVideo/HasAudio = %v/%v, want %v/%v",
					tt.format.HasVideo(), tt.format.HasAudio(), tt.wantVideo, tt.wantAudio)
			}
		})
	}
}

func TestMediaProbe_IsMultiItem(t *testing.T) {
	tests := []struct {
		name  string
		probe MediaProbe
		want  bool
	}{
		{"single", MediaProbe{}, false},
		{"item count", MediaProbe{ItemCount: 3}, true},
		{"entries", MediaProbe{Entries: []ProbeEntry{{ID: "a"}, {ID: "b"}}}, true},
		{"one entry", MediaProbe{ItemCount: 1, Entries: []ProbeEntry{{ID: "a"}}}, false},
	}

	for _, tt := range tests {
		if got := tt.probe.IsMultiItem(); got != tt.want {
			t.Errorf("%s: IsMultiItem() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFetchResult_Validate(t *testing.T) {
	video := &Artifact{Path: "/w/a.mp4", Size: 1}
	images := []Artifact{{Path: "/w/1.jpg", Size: 1}}

	tests := []struct {
		name    string
		result  FetchResult
		wantErr error
	}{
		{"video", FetchResult{Video: video}, nil},
		{"images", FetchResult{Images: images}, nil},
		{"neither", FetchResult{}, ErrArtifactMissing},
		{"both", FetchResult{Video: video, Images: images}, ErrAmbiguousResult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.result.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// =============================================================================
// Outcome Tests
// =============================================================================

func TestDeliveryOutcome_OversizedNotice(t *testing.T) {
	out := ArchivedOversized(120*1024*1024, MBToBytes(50), "/downloads/x.mp4")
	want := "✅ Download complete, but file is too large to send.\n\n" +
		"**Size:** 120.00 MB\n" +
		"**Limit:** 50 MB\n\n" +
		"File saved to bot's server (storage is temporary)."
	if got := out.OversizedNotice(); got != want {
		t.Errorf("OversizedNotice() = %q, want %q", got, want)
	}
}

func TestFormatMB(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0.00 MB"},
		{1024 * 1024, "1.00 MB"},
		{1536 * 1024, "1.50 MB"},
	}

	for _, tt := range tests {
		if got := FormatMB(tt.size); got != tt.want {
			t.Errorf("FormatMB(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}

// =============================================================================
// Error Tests
// =============================================================================

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"job error wins", NewJobError("j", "send", ErrorClassDelivery, ErrInvalidURL), ErrorClassDelivery},
		{"wrapped job error", fmt.Errorf("outer: %w", NewJobError("j", "probe", ErrorClassRetrieval, errors.New("x"))), ErrorClassRetrieval},
		{"invalid url", fmt.Errorf("%w: x", ErrInvalidURL), ErrorClassRejection},
		{"unsupported", ErrUnsupportedPlatform, ErrorClassRejection},
		{"artifact", ErrArtifactMissing, ErrorClassArtifact},
		{"anything else", errors.New("boom"), ErrorClassInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassOf(tt.err); got != tt.want {
				t.Errorf("ClassOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestJobError(t *testing.T) {
	inner := errors.New("exit status 1")
	err := NewJobError("job-9", "fetch", ErrorClassRetrieval, inner)

	if !strings.Contains(err.Error(), "job-9") || !strings.Contains(err.Error(), "fetch") {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("JobError should unwrap to its cause")
	}

	anon := NewJobError("", "validate", ErrorClassRejection, inner)
	if anon.Error() != "validate: exit status 1" {
		t.Errorf("Error() = %q", anon.Error())
	}
}

// =============================================================================
// Event Tests
// =============================================================================

func TestEventMetadata_ToJSON(t *testing.T) {
	tests := []struct {
		name     string
		metadata EventMetadata
		wantNil  bool
	}{
		{"nil metadata", nil, true},
		{"empty metadata", EventMetadata{}, false},
		{"with data", EventMetadata{"key": "value", "count": 42}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.metadata.ToJSON()
			if tt.wantNil && result != nil {
				t.Errorf("ToJSON() = %v, want nil", result)
			}
			if !tt.wantNil && result == nil {
				t.Error("ToJSON() = nil, want non-nil")
			}
		})
	}
}

func TestEventMetadata_ToJSON_Decodes(t *testing.T) {
	data := EventMetadata{"url": "https://youtu.be/x", "size": 42}.ToJSON()

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if decoded["url"] != "https://youtu.be/x" {
		t.Errorf("url = %v", decoded["url"])
	}
}

func TestProgressFunc(t *testing.T) {
	var got []ProgressEvent
	var sink ProgressSink = ProgressFunc(func(ev ProgressEvent) { got = append(got, ev) })

	sink.Report(ProgressEvent{Phase: PhaseDownloading, Percent: 12})
	if len(got) != 1 || got[0].Percent != 12 {
		t.Errorf("events = %+v", got)
	}
}

package ffmpeg

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestParseProbeOutput(t *testing.T) {
	output := []byte(`{
		"format": {"duration": "62.500000", "bit_rate": "1250000"},
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720, "avg_frame_rate": "30000/1001"},
			{"codec_type": "audio", "codec_name": "aac"}
		]
	}`)

	info, err := parseProbeOutput(output)
	if err != nil {
		t.Fatalf("parseProbeOutput failed: %v", err)
	}

	if info.Duration != 62.5 {
		t.Errorf("Duration = %v, want 62.5", info.Duration)
	}
	if info.Bitrate != 1250000 {
		t.Errorf("Bitrate = %d, want 1250000", info.Bitrate)
	}
	if info.Width != 1280 || info.Height != 720 {
		t.Errorf("dimensions = %dx%d, want 1280x720", info.Width, info.Height)
	}
	if info.VideoCodec != "h264" {
		t.Errorf("VideoCodec = %q, want h264", info.VideoCodec)
	}
	if !info.HasAudio || info.AudioCodec != "aac" {
		t.Errorf("audio = %v/%q, want true/aac", info.HasAudio, info.AudioCodec)
	}
	if math.Abs(info.FrameRate-29.97) > 0.01 {
		t.Errorf("FrameRate = %v, want ~29.97", info.FrameRate)
	}
}

func TestParseProbeOutput_Invalid(t *testing.T) {
	if _, err := parseProbeOutput([]byte("not json")); err == nil {
		t.Error("expected error for invalid output")
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"0/0", 0},
		{"25", 0},
		{"", 0},
		{"abc/1", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseFrameRate(tt.in); got != tt.want {
				t.Errorf("parseFrameRate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveBinary_PreferredPath(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("write binary: %v", err)
	}

	got, err := resolveBinary(bin, "ffmpeg-does-not-exist")
	if err != nil {
		t.Fatalf("resolveBinary failed: %v", err)
	}
	if got != bin {
		t.Errorf("resolveBinary = %q, want %q", got, bin)
	}
}

func TestResolveBinary_Missing(t *testing.T) {
	if _, err := resolveBinary("/nonexistent/ffmpeg", "ffmpeg-does-not-exist-anywhere"); err == nil {
		t.Error("expected error for missing binary")
	}
}

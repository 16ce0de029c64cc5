package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// VideoProcessor inspects media files with ffprobe and exposes the ffmpeg
// location that yt-dlp uses for merging and remuxing.
type VideoProcessor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewVideoProcessor locates ffmpeg and ffprobe. A configured ffmpegPath is
// used as-is when it exists; otherwise both binaries are looked up in PATH.
// ffprobe is searched next to ffmpeg first.
func NewVideoProcessor(ffmpegPath string) (*VideoProcessor, error) {
	resolved, err := resolveBinary(ffmpegPath, "ffmpeg")
	if err != nil {
		return nil, err
	}

	sibling := filepath.Join(filepath.Dir(resolved), "ffprobe")
	probe, err := resolveBinary(sibling, "ffprobe")
	if err != nil {
		return nil, err
	}

	return &VideoProcessor{
		ffmpegPath:  resolved,
		ffprobePath: probe,
	}, nil
}

func resolveBinary(preferred, name string) (string, error) {
	if preferred != "" {
		if st, err := os.Stat(preferred); err == nil && !st.IsDir() {
			return preferred, nil
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return path, nil
}

// FFmpegPath returns the resolved ffmpeg binary.
func (p *VideoProcessor) FFmpegPath() string {
	return p.ffmpegPath
}

// VideoInfo contains metadata about a video file.
type VideoInfo struct {
	Duration   float64 // seconds
	Width      int
	Height     int
	HasAudio   bool
	AudioCodec string
	VideoCodec string
	Bitrate    int64
	FrameRate  float64
	FileSize   int64
}

// GetVideoInfo extracts metadata from a video file.
func (p *VideoProcessor) GetVideoInfo(ctx context.Context, videoPath string) (*VideoInfo, error) {
	stat, err := os.Stat(videoPath)
	if err != nil {
		return nil, fmt.Errorf("stat video: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	info, err := parseProbeOutput(output)
	if err != nil {
		return nil, err
	}
	info.FileSize = stat.Size()
	return info, nil
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

func parseProbeOutput(output []byte) (*VideoInfo, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &VideoInfo{}
	if dur, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
		info.Duration = dur
	}
	if br, err := strconv.ParseInt(parsed.Format.BitRate, 10, 64); err == nil {
		info.Bitrate = br
	}

	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "audio":
			info.HasAudio = true
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		case "video":
			if info.VideoCodec == "" {
				info.VideoCodec = s.CodecName
			}
			if info.Width == 0 && s.Width > 0 {
				info.Width = s.Width
			}
			if info.Height == 0 && s.Height > 0 {
				info.Height = s.Height
			}
			if info.FrameRate == 0 {
				info.FrameRate = parseFrameRate(s.AvgFrameRate)
			}
		}
	}

	return info, nil
}

// parseFrameRate turns an ffprobe rational like "30000/1001" into fps.
func parseFrameRate(rate string) float64 {
	parts := strings.SplitN(rate, "/", 2)
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

// GetVersion returns the first line of `ffmpeg -version`.
func (p *VideoProcessor) GetVersion(ctx context.Context) (string, error) {
	output, err := exec.CommandContext(ctx, p.ffmpegPath, "-version").Output()
	if err != nil {
		return "", err
	}
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		return strings.TrimSpace(lines[0]), nil
	}
	return "unknown", nil
}

package extractor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iconidentify/mediabot/internal/domain"
)

// infoJSON is the subset of yt-dlp's --dump-single-json output we read.
type infoJSON struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Type          string          `json:"_type"`
	URL           string          `json:"url"`
	Ext           string          `json:"ext"`
	VCodec        string          `json:"vcodec"`
	PlaylistCount int             `json:"playlist_count"`
	Formats       []formatJSON    `json:"formats"`
	Requested     []formatJSON    `json:"requested_formats"`
	Entries       []infoJSON      `json:"entries"`
	Thumbnails    []thumbnailJSON `json:"thumbnails"`
}

type formatJSON struct {
	FormatID string  `json:"format_id"`
	Ext      string  `json:"ext"`
	VCodec   string  `json:"vcodec"`
	ACodec   string  `json:"acodec"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	URL      string  `json:"url"`
}

type thumbnailJSON struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

var videoExts = map[string]bool{"mp4": true, "webm": true, "mkv": true, "mov": true, "m4v": true}

// parseProbe converts yt-dlp JSON into a MediaProbe. Kind is left unset.
func parseProbe(data []byte) (*domain.MediaProbe, error) {
	var info infoJSON
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode yt-dlp output: %w", err)
	}
	if info.ID == "" && len(info.Entries) == 0 && len(info.Formats) == 0 && info.URL == "" {
		return nil, fmt.Errorf("yt-dlp output carries no media")
	}

	probe := &domain.MediaProbe{
		ID:          info.ID,
		Title:       info.Title,
		Formats:     convertFormats(info.Formats),
		StreamCount: len(info.Requested),
	}

	items := info.Entries
	if len(items) == 0 {
		items = []infoJSON{info}
	} else {
		probe.ItemCount = max(len(info.Entries), info.PlaylistCount)
	}

	for _, item := range items {
		playable := item.hasVideo()
		probe.Entries = append(probe.Entries, domain.ProbeEntry{
			ID:       item.ID,
			URL:      item.URL,
			Ext:      item.Ext,
			Playable: playable,
		})
		if len(info.Entries) > 0 && playable && len(probe.Formats) == 0 {
			probe.Formats = convertFormats(item.Formats)
		}
		if !playable {
			if asset, ok := item.imageAsset(); ok {
				probe.Assets = append(probe.Assets, asset)
			}
		}
	}
	if len(info.Entries) == 0 {
		probe.Entries = nil
	}

	return probe, nil
}

func convertFormats(in []formatJSON) []domain.FormatDescriptor {
	out := make([]domain.FormatDescriptor, 0, len(in))
	for _, f := range in {
		out = append(out, domain.FormatDescriptor{
			FormatID: f.FormatID,
			Ext:      f.Ext,
			VCodec:   f.VCodec,
			ACodec:   f.ACodec,
			Height:   f.Height,
			FPS:      f.FPS,
			URL:      f.URL,
		})
	}
	return out
}

func (i infoJSON) hasVideo() bool {
	for _, f := range i.Formats {
		if codecPresent(f.VCodec) {
			return true
		}
	}
	if len(i.Formats) == 0 {
		return codecPresent(i.VCodec) || videoExts[strings.ToLower(i.Ext)]
	}
	return false
}

// imageAsset picks the best downloadable image for an item: its own URL,
// then the last listed format, then the last thumbnail. yt-dlp lists
// formats and thumbnails worst first.
func (i infoJSON) imageAsset() (domain.Asset, bool) {
	if i.URL != "" {
		return domain.Asset{URL: i.URL, Ext: i.Ext}, true
	}
	for j := len(i.Formats) - 1; j >= 0; j-- {
		if f := i.Formats[j]; f.URL != "" {
			return domain.Asset{URL: f.URL, Ext: f.Ext}, true
		}
	}
	for j := len(i.Thumbnails) - 1; j >= 0; j-- {
		if t := i.Thumbnails[j]; t.URL != "" {
			return domain.Asset{URL: t.URL}, true
		}
	}
	return domain.Asset{}, false
}

func codecPresent(codec string) bool {
	return codec != "" && codec != "none"
}

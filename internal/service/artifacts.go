package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/iconidentify/mediabot/internal/domain"
)

var videoExts = map[string]bool{
	".mp4": true, ".mkv": true, ".webm": true, ".mov": true, ".m4v": true,
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true, ".heic": true,
}

// ResolveArtifacts locates what a fetch wrote into workDir.
//
// For video the engine hint is tried first, then <id>.mp4 (the remuxed
// name), then the largest video file in the directory. Images are every
// image file in lexical order of their names.
func ResolveArtifacts(workDir string, kind domain.ContentKind, probe *domain.MediaProbe, hint string) (*domain.FetchResult, error) {
	result := &domain.FetchResult{Probe: probe}

	switch kind {
	case domain.ContentVideo:
		art, err := resolveVideo(workDir, probe, hint)
		if err != nil {
			return nil, err
		}
		result.Video = art
	case domain.ContentImageCollection:
		images, err := resolveImages(workDir)
		if err != nil {
			return nil, err
		}
		result.Images = images
	default:
		return nil, fmt.Errorf("resolve %s: %w", kind, domain.ErrArtifactMissing)
	}

	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

func resolveVideo(workDir string, probe *domain.MediaProbe, hint string) (*domain.Artifact, error) {
	candidates := []string{}
	if hint != "" {
		candidates = append(candidates, hint)
	}
	if probe != nil && probe.ID != "" {
		candidates = append(candidates, filepath.Join(workDir, probe.ID+".mp4"))
	}

	for _, c := range candidates {
		if art, ok := statArtifact(c); ok && within(workDir, c) {
			return art, nil
		}
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		return nil, fmt.Errorf("read work dir: %w", err)
	}

	var best *domain.Artifact
	for _, e := range entries {
		if e.IsDir() || !videoExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		art, ok := statArtifact(filepath.Join(workDir, e.Name()))
		if ok && (best == nil || art.Size > best.Size) {
			best = art
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no video in %s (hint %q): %w", workDir, hint, domain.ErrArtifactMissing)
	}
	return best, nil
}

func resolveImages(workDir string) ([]domain.Artifact, error) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return nil, fmt.Errorf("read work dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	images := make([]domain.Artifact, 0, len(names))
	for _, name := range names {
		if art, ok := statArtifact(filepath.Join(workDir, name)); ok {
			images = append(images, *art)
		}
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no images in %s: %w", workDir, domain.ErrArtifactMissing)
	}
	return images, nil
}

func statArtifact(path string) (*domain.Artifact, bool) {
	st, err := os.Stat(path)
	if err != nil || st.IsDir() || st.Size() == 0 {
		return nil, false
	}
	return &domain.Artifact{Path: path, Size: st.Size()}, true
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

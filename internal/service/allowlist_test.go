package service

import (
	"errors"
	"testing"

	"github.com/iconidentify/mediabot/internal/domain"
)

func testAllowList() *AllowList {
	return NewAllowList(map[string][]string{
		"youtube":   {"youtube.com", "youtu.be"},
		"tiktok":    {"tiktok.com"},
		"facebook":  {"facebook.com", "fb.watch"},
		"instagram": {"www.Instagram.com"},
	})
}

func TestAllowList_Match(t *testing.T) {
	allow := testAllowList()

	tests := []struct {
		name     string
		url      string
		platform string
		ok       bool
	}{
		{"youtube watch", "https://www.youtube.com/watch?v=abc", "youtube", true},
		{"youtube short link", "https://youtu.be/abc", "youtube", true},
		{"mobile subdomain", "https://m.youtube.com/watch?v=abc", "youtube", true},
		{"tiktok", "https://vm.tiktok.com/ZMabc/", "tiktok", true},
		{"facebook watch", "http://fb.watch/xyz", "facebook", true},
		{"www prefix stripped in config", "https://instagram.com/p/abc", "instagram", true},
		{"uppercase host", "https://WWW.YOUTUBE.COM/watch?v=abc", "youtube", true},
		{"unknown host", "https://vimeo.com/123", "", false},
		{"suffix is not a parent domain", "https://notyoutube.com/watch", "", false},
		{"ftp scheme", "ftp://youtube.com/file", "", false},
		{"not a url", "hello there", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platform, ok := allow.Match(tt.url)
			if ok != tt.ok || platform != tt.platform {
				t.Errorf("Match(%q) = (%q, %v), want (%q, %v)", tt.url, platform, ok, tt.platform, tt.ok)
			}
		})
	}
}

func TestAllowList_ValidateURL(t *testing.T) {
	allow := testAllowList()

	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"supported", "https://youtu.be/abc", nil},
		{"surrounding whitespace", "  https://youtu.be/abc  ", nil},
		{"plain text", "download this please", domain.ErrInvalidURL},
		{"missing scheme", "youtube.com/watch?v=abc", domain.ErrInvalidURL},
		{"unsupported host", "https://example.com/video", domain.ErrUnsupportedPlatform},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := allow.ValidateURL(tt.url)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if domain.ClassOf(err) != domain.ErrorClassRejection {
				t.Errorf("class = %s, want rejection", domain.ClassOf(err))
			}
		})
	}
}

func TestAllowList_Platforms(t *testing.T) {
	got := testAllowList().Platforms()
	want := []string{"facebook", "instagram", "tiktok", "youtube"}
	if len(got) != len(want) {
		t.Fatalf("Platforms() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Platforms()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

package service

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/iconidentify/mediabot/internal/domain"
)

// AllowList decides whether a URL points at a supported platform.
type AllowList struct {
	hosts     map[string]string // host -> platform
	platforms []string
}

// NewAllowList builds an allow-list from platform -> hosts.
func NewAllowList(platforms map[string][]string) *AllowList {
	a := &AllowList{hosts: make(map[string]string)}
	for name, hosts := range platforms {
		a.platforms = append(a.platforms, name)
		for _, h := range hosts {
			h = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h)), "www.")
			if h != "" {
				a.hosts[h] = name
			}
		}
	}
	sort.Strings(a.platforms)
	return a
}

// Platforms returns the allow-listed platform names, sorted.
func (a *AllowList) Platforms() []string {
	return append([]string(nil), a.platforms...)
}

// Match reports the platform rawURL belongs to. Hosts match exactly or as
// a parent domain, so m.youtube.com matches youtube.com.
func (a *AllowList) Match(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	for host != "" {
		if name, ok := a.hosts[host]; ok {
			return name, true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			break
		}
		host = host[i+1:]
	}
	return "", false
}

// ValidateURL checks the scheme and the allow-list. The returned error wraps
// domain.ErrInvalidURL or domain.ErrUnsupportedPlatform.
func (a *AllowList) ValidateURL(rawURL string) (string, error) {
	text := strings.TrimSpace(rawURL)
	if !HasHTTPScheme(text) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidURL, text)
	}
	platform, ok := a.Match(text)
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedPlatform, text)
	}
	return platform, nil
}

// HasHTTPScheme reports whether text starts with http:// or https://.
func HasHTTPScheme(text string) bool {
	return strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://")
}

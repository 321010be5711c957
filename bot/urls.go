package bot

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL accepts absolute http(s) URLs with a host. Anything else is
// rejected before a subprocess is ever spawned.
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url has no host")
	}
	return nil
}

// IsPlaylistURL reports whether the link points at a playlist rather than a
// single video. A watch link carrying both a video id and a list parameter
// still counts as a single video.
func IsPlaylistURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if strings.Contains(u.Path, "/playlist") {
		return true
	}
	q := u.Query()
	return q.Get("list") != "" && q.Get("v") == ""
}

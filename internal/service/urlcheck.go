package service

import (
	"net/url"
	"strings"
)

// Blocklist decides whether a host may be shortened.
type Blocklist interface {
	Blocked(host string) bool
}

// ValidateURL checks that raw is an absolute http(s) URL whose host is not
// blocked, and returns it trimmed.
func ValidateURL(raw string, blocked Blocklist) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invalid("url", "URL is required")
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "", invalid("url", "Invalid URL format")
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", invalid("url", "Only http and https URLs are allowed")
	}

	if u.Hostname() == "" {
		return "", invalid("url", "Invalid URL format")
	}

	if blocked != nil && blocked.Blocked(u.Hostname()) {
		return "", invalid("url", "This URL is not allowed")
	}

	return raw, nil
}

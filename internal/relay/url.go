package relay

import (
	"net/url"
	"strings"
)

// NormalizeURL validates and canonicalizes a relay URL. Scheme and host
// are lowercased and a bare trailing slash is dropped, so trivially
// different spellings of the same relay collide in the registry.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}

	// No protocol, or double protocols (wss://https://...)
	if !strings.Contains(raw, "://") || strings.Count(raw, "://") > 1 {
		return "", ErrInvalidURL
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return "", ErrInvalidURL
	}

	host := parsed.Hostname()
	if host == "" || strings.Contains(host, " ") {
		return "", ErrInvalidURL
	}

	result := strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(host)
	if parsed.Port() != "" {
		result += ":" + parsed.Port()
	}
	if parsed.Path != "" && parsed.Path != "/" {
		result += parsed.Path
	}
	return result, nil
}

// Package safeurl validates URLs taken from configuration and upstream payloads.
package safeurl

import (
	"net/url"
	"path"
	"strings"
)

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or https and a host.
// Used for source endpoints and episode URLs: file://, ftp:// and friends are rejected.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return false
	}
	s := strings.ToLower(parsed.Scheme)
	return (s == "http" || s == "https") && parsed.Host != ""
}

// Ext returns the lower-cased extension of u's path, ignoring query and fragment.
// Unparseable input falls back to cutting at the first '?' or '#'.
func Ext(u string) string {
	p := strings.TrimSpace(u)
	if parsed, err := url.Parse(p); err == nil {
		p = parsed.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return strings.ToLower(path.Ext(p))
}

// HasExt reports whether u is an http(s) URL whose path extension is in allow.
// Entries in allow are compared case-insensitively, with or without a leading dot.
func HasExt(u string, allow []string) bool {
	if !IsHTTPOrHTTPS(u) {
		return false
	}
	ext := Ext(u)
	if ext == "" {
		return false
	}
	for _, a := range allow {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if !strings.HasPrefix(a, ".") {
			a = "." + a
		}
		if a == ext {
			return true
		}
	}
	return false
}

package crawler

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/nao1215/sitescan/internal/config"
)

// Scope decides which URLs a crawl may follow.
//
// A URL is in scope when its scheme is http or https, its host matches one of
// the allowed hosts, its path starts with one of the path prefixes, it matches
// no ignore pattern and, when follow patterns are set, at least one of them.
type Scope struct {
	hosts          []string
	prefixes       []string
	ignorePatterns []string
	followPatterns []string
}

// NewScope builds the scope of target.
func NewScope(target config.Target) *Scope {
	return &Scope{
		hosts:          target.AllowedHosts,
		prefixes:       target.PathPrefixes,
		ignorePatterns: target.IgnorePatterns,
		followPatterns: target.FollowPatterns,
	}
}

// InScope reports whether links to u may be followed.
func (s *Scope) InScope(u *url.URL) bool {
	return s.InBounds(u) && s.shouldCrawl(pathOf(u))
}

// InBounds reports whether u points at an allowed host under one of the path
// prefixes. Seeds only need this check: ignore and follow patterns select
// the links found on the way.
func (s *Scope) InBounds(u *url.URL) bool {
	return s.AllowsHost(u) && config.HasPathPrefix(s.prefixes, pathOf(u))
}

func pathOf(u *url.URL) string {
	if u.Path == "" {
		return "/"
	}
	return u.Path
}

// AllowsHost reports whether u uses http(s) and points at an allowed host.
// Active probes only need this check: they target fixed diagnostic paths
// regardless of path prefixes and patterns.
func (s *Scope) AllowsHost(u *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := canonicalHost(u.Scheme, u.Host)
	if host == "" {
		return false
	}
	hostname := strings.ToLower(u.Hostname())

	for _, pattern := range s.hosts {
		if config.MatchHost(pattern, host, hostname) {
			return true
		}
	}
	return false
}

// shouldCrawl checks a path against ignore and follow patterns.
//
// Logic:
//  1. If the path matches any ignore pattern, skip it
//  2. If follow patterns are set and the path matches none, skip it
//  3. Otherwise, crawl it
func (s *Scope) shouldCrawl(p string) bool {
	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, p) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, p) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard" and "/admin"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, p string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(p, prefix+"/") || p == prefix {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") && !strings.ContainsAny(ext, "*?[") {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, p)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Bare file patterns like "*.pdf" or "logout*" also match the last segment.
	if strings.ContainsAny(pattern, "*?") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(p))
		if err == nil && matched {
			return true
		}
	}

	return false
}

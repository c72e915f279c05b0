package crawler

import (
	"net"
	"net/url"
	"path"
	"strings"
)

// NormalizeURL returns the canonical form of rawURL used as the visited-set key.
//
// Normalization lowercases scheme and host, drops default ports (80 for http,
// 443 for https), removes dot segments and trailing slashes (the root path
// stays "/"), and strips the fragment. The query string is kept verbatim:
// parameters can select different content.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	return normalize(u), nil
}

// normalize canonicalizes u without modifying it.
func normalize(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	c.Scheme = strings.ToLower(c.Scheme)
	c.Host = canonicalHost(c.Scheme, c.Host)

	p := c.Path
	if p == "" {
		p = "/"
	}
	cleaned := path.Clean(p)
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	if cleaned != c.Path {
		c.Path = cleaned
		c.RawPath = ""
	}
	c.ForceQuery = false

	return c.String()
}

// canonicalHost lowercases host and removes the port when it is the default for scheme.
func canonicalHost(scheme, host string) string {
	host = strings.ToLower(host)
	h, port, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		if strings.Contains(h, ":") {
			return "[" + h + "]"
		}
		return h
	}
	return host
}

// stripFragment returns u as a string without its fragment.
// The fetcher requests this form; the normalized form is only a key.
func stripFragment(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}

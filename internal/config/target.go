package config

import (
	"fmt"
	"maps"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"
)

// Target is one fully resolved site to crawl.
//
// A Target is built once from the configuration file and then only read.
// Slices and maps are private copies, so sharing a Target between
// goroutines is safe as long as nobody writes to it.
type Target struct {
	// Name labels the target in reports and the history database.
	Name string

	// BaseURL is the seed URL.
	BaseURL string

	// AllowedHosts are lowercased host patterns; "*.example.com" matches subdomains.
	AllowedHosts []string

	// PathPrefixes restrict the crawl to matching URL paths.
	PathPrefixes []string

	// IgnorePatterns are path globs to skip.
	IgnorePatterns []string

	// FollowPatterns are path globs to follow exclusively when non-empty.
	FollowPatterns []string

	MaxDepth       int
	MaxPages       int
	Workers        int
	CrawlTimeout   time.Duration
	RequestTimeout time.Duration
	Delay          time.Duration
	MaxRedirects   int
	MaxAttempts    int
	MaxBodySize    int64

	UserAgent string
	Cookie    string
	Headers   map[string]string

	RespectRobots      bool
	Probes             bool
	ProbeAllHosts      bool
	ProbesIgnoreRobots bool
	FollowAssets       bool
	VerifyTLS          bool

	// Detectors holds explicit enable/disable flags by detector name.
	Detectors map[string]bool

	// ProbePaths are the search_for_files templates, "{domain}" not yet expanded.
	ProbePaths []string
}

// SeedURL returns the parsed base URL. Targets are validated on creation,
// so the parse cannot fail for a Target obtained from File.Targets.
func (t Target) SeedURL() *url.URL {
	u, _ := url.Parse(t.BaseURL)
	return u
}

// SeedHost returns the lowercased host of the base URL including any port.
func (t Target) SeedHost() string {
	return strings.ToLower(t.SeedURL().Host)
}

// DetectorEnabled reports whether the named detector should run for this target.
func (t Target) DetectorEnabled(name string) bool {
	enabled, ok := t.Detectors[name]
	return !ok || enabled
}

// ExpandProbePaths returns the configured probe paths for host with "{domain}"
// replaced by the host name (without port) and a leading slash added.
func (t Target) ExpandProbePaths(host string) []string {
	return ExpandProbePaths(t.ProbePaths, host)
}

// ExpandProbePaths expands "{domain}" in each of paths with the name of host
// and makes every path absolute.
func ExpandProbePaths(paths []string, host string) []string {
	domain := host
	if i := strings.LastIndexByte(domain, ':'); i >= 0 && !strings.Contains(domain[i:], "]") {
		domain = domain[:i]
	}
	expanded := make([]string, 0, len(paths))
	for _, p := range paths {
		e := strings.ReplaceAll(p, "{domain}", domain)
		if !strings.HasPrefix(e, "/") {
			e = "/" + e
		}
		expanded = append(expanded, e)
	}
	return expanded
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func newTarget(site SiteConfig, probePaths []string) (Target, error) {
	seed, err := url.Parse(strings.TrimSpace(site.URL))
	if err != nil || (seed.Scheme != "http" && seed.Scheme != "https") || seed.Host == "" {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidTargetURL, site.URL)
	}
	seed.Scheme = strings.ToLower(seed.Scheme)
	seed.Host = strings.ToLower(seed.Host)
	if (seed.Scheme == "http" && seed.Port() == "80") || (seed.Scheme == "https" && seed.Port() == "443") {
		seed.Host = strings.TrimSuffix(seed.Host, ":"+seed.Port())
	}
	seed.Fragment = ""
	if seed.Path == "" {
		seed.Path = "/"
	}

	t := Target{
		Name:               site.Name,
		BaseURL:            seed.String(),
		MaxDepth:           DefaultMaxDepth,
		MaxPages:           DefaultMaxPages,
		Workers:            DefaultWorkers,
		CrawlTimeout:       DefaultCrawlTimeout,
		RequestTimeout:     DefaultRequestTimeout,
		Delay:              DefaultHostDelay,
		MaxRedirects:       DefaultMaxRedirects,
		MaxAttempts:        DefaultMaxAttempts,
		MaxBodySize:        DefaultMaxBodySize,
		UserAgent:          DefaultUserAgent,
		Cookie:             site.Cookie,
		Headers:            maps.Clone(site.Headers),
		RespectRobots:      boolOr(site.RespectRobots, true),
		Probes:             boolOr(site.Probes, true),
		ProbeAllHosts:      boolOr(site.ProbeAllHosts, false),
		ProbesIgnoreRobots: boolOr(site.ProbesIgnoreRobots, true),
		FollowAssets:       boolOr(site.FollowAssets, false),
		VerifyTLS:          boolOr(site.VerifyTLS, true),
		Detectors:          maps.Clone(site.Detectors),
		IgnorePatterns:     slices.Clone(site.IgnorePatterns),
		FollowPatterns:     slices.Clone(site.FollowPatterns),
	}
	if t.Name == "" {
		t.Name = t.BaseURL
	}

	if site.MaxDepth != nil {
		t.MaxDepth = *site.MaxDepth
	}
	if site.MaxPages != 0 {
		t.MaxPages = site.MaxPages
	}
	if site.Workers != 0 {
		t.Workers = site.Workers
	}
	if site.CrawlTimeout != 0 {
		t.CrawlTimeout = site.CrawlTimeout
	}
	if site.RequestTimeout != 0 {
		t.RequestTimeout = site.RequestTimeout
	}
	if site.Delay != nil {
		t.Delay = *site.Delay
	}
	if site.MaxRedirects != nil {
		t.MaxRedirects = *site.MaxRedirects
	}
	if site.MaxAttempts != 0 {
		t.MaxAttempts = site.MaxAttempts
	}
	if site.MaxBodySize != 0 {
		t.MaxBodySize = site.MaxBodySize
	}
	if site.UserAgent != "" {
		t.UserAgent = site.UserAgent
	}

	t.AllowedHosts = []string{seed.Host}
	if len(site.AllowedHosts) > 0 {
		t.AllowedHosts = make([]string, 0, len(site.AllowedHosts))
		for _, h := range site.AllowedHosts {
			h = strings.ToLower(strings.TrimSpace(h))
			wildcard := strings.HasPrefix(h, "*.")
			if h == "" || strings.ContainsAny(h, "/?#@ ") || strings.Contains(strings.TrimPrefix(h, "*."), "*") ||
				(strings.HasPrefix(h, "*") && !wildcard) {
				return Target{}, fmt.Errorf("%w: allowed host %q", ErrInvalidScope, h)
			}
			t.AllowedHosts = append(t.AllowedHosts, h)
		}
	}

	t.PathPrefixes = []string{"/"}
	if len(site.PathPrefixes) > 0 {
		t.PathPrefixes = make([]string, 0, len(site.PathPrefixes))
		for _, p := range site.PathPrefixes {
			if !strings.HasPrefix(p, "/") {
				return Target{}, fmt.Errorf("%w: path prefix %q must start with /", ErrInvalidScope, p)
			}
			t.PathPrefixes = append(t.PathPrefixes, p)
		}
	}

	if !t.coversSeed(seed) {
		return Target{}, fmt.Errorf("%w: seed %s is outside allowed_hosts %v or path_prefixes %v",
			ErrInvalidScope, t.BaseURL, t.AllowedHosts, t.PathPrefixes)
	}

	for _, p := range slices.Concat(t.IgnorePatterns, t.FollowPatterns) {
		if _, err := path.Match(p, ""); err != nil {
			return Target{}, fmt.Errorf("%w: %q: %w", ErrInvalidPattern, p, err)
		}
	}

	for _, p := range probePaths {
		if strings.TrimSpace(p) == "" || strings.Contains(p, "://") {
			return Target{}, fmt.Errorf("%w: %q", ErrInvalidProbePath, p)
		}
	}
	t.ProbePaths = slices.Clone(probePaths)

	if err := t.validate(); err != nil {
		return Target{}, err
	}
	return t, nil
}

// coversSeed reports whether the seed URL is inside the target's own host
// and path scope.
func (t Target) coversSeed(seed *url.URL) bool {
	hostname := strings.ToLower(seed.Hostname())
	for _, pattern := range t.AllowedHosts {
		if MatchHost(pattern, seed.Host, hostname) {
			return HasPathPrefix(t.PathPrefixes, seed.Path)
		}
	}
	return false
}

// MatchHost matches an allowed-host pattern against a canonical host and its
// lowercased host name. A pattern with a port must match host:port exactly;
// a pattern without one matches the host name on any port.
// "*.example.com" matches example.com and every subdomain of it.
func MatchHost(pattern, host, hostname string) bool {
	if base, ok := strings.CutPrefix(pattern, "*."); ok {
		return hostname == base || strings.HasSuffix(hostname, "."+base)
	}
	if strings.Contains(strings.TrimPrefix(pattern, "["), ":") && !strings.HasSuffix(pattern, "]") {
		return host == pattern
	}
	return hostname == strings.Trim(pattern, "[]")
}

// HasPathPrefix reports whether p starts with one of prefixes.
func HasPathPrefix(prefixes []string, p string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func (t Target) validate() error {
	switch {
	case t.MaxDepth < 0:
		return fmt.Errorf("%w: %d", ErrInvalidDepth, t.MaxDepth)
	case t.MaxPages <= 0:
		return fmt.Errorf("%w: %d", ErrInvalidMaxPages, t.MaxPages)
	case t.Workers < 1 || t.Workers > MaxWorkers:
		return fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidWorkers, t.Workers, MaxWorkers)
	case t.CrawlTimeout <= 0:
		return fmt.Errorf("%w: crawl_timeout %v", ErrInvalidTimeout, t.CrawlTimeout)
	case t.RequestTimeout <= 0:
		return fmt.Errorf("%w: request_timeout %v", ErrInvalidTimeout, t.RequestTimeout)
	case t.Delay < 0:
		return fmt.Errorf("%w: %v", ErrInvalidDelay, t.Delay)
	case t.MaxRedirects < 0 || t.MaxAttempts < 1:
		return fmt.Errorf("%w: max_redirects %d, max_attempts %d", ErrInvalidRetry, t.MaxRedirects, t.MaxAttempts)
	case t.MaxBodySize <= 0:
		return fmt.Errorf("%w: %d", ErrInvalidMaxBodySize, t.MaxBodySize)
	}
	return nil
}

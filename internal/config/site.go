package config

import (
	"fmt"
	"maps"
	"time"

	"gopkg.in/yaml.v3"
)

// SiteConfig holds the crawl settings of one site, or the defaults applied to every site.
//
// Zero values mean "inherit". Settings where zero is meaningful (depth, delay,
// booleans) are pointers so that an explicit 0 or false can be told apart from
// an absent key.
type SiteConfig struct {
	// URL is the seed URL of the site. Ignored in defaults.
	URL string `yaml:"url,omitempty"`

	// Name labels the site in reports. Defaults to URL.
	Name string `yaml:"name,omitempty"`

	// AllowedHosts lists the hosts links may be followed into.
	// "*.example.com" matches any subdomain. Defaults to the seed host.
	AllowedHosts []string `yaml:"allowed_hosts,omitempty"`

	// PathPrefixes restricts the crawl to URL paths with one of these prefixes.
	// Defaults to "/".
	PathPrefixes []string `yaml:"path_prefixes,omitempty"`

	// IgnorePatterns are URL path globs to skip during crawling.
	IgnorePatterns []string `yaml:"ignore_patterns,omitempty"`

	// FollowPatterns are URL path globs to follow. If set, only matching paths are crawled.
	FollowPatterns []string `yaml:"follow_patterns,omitempty"`

	// MaxDepth is the maximum discovery depth. 0 fetches the seed only.
	MaxDepth *int `yaml:"max_depth,omitempty"`

	// MaxPages is the fetch budget.
	MaxPages int `yaml:"max_pages,omitempty"`

	// Workers is the worker pool size.
	Workers int `yaml:"workers,omitempty"`

	// CrawlTimeout is the wall-clock budget.
	CrawlTimeout time.Duration `yaml:"crawl_timeout,omitempty"`

	// RequestTimeout bounds each request.
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`

	// Delay is the minimum delay between two requests to the same host.
	Delay *time.Duration `yaml:"delay,omitempty"`

	// MaxRedirects is the redirect cap per fetch.
	MaxRedirects *int `yaml:"max_redirects,omitempty"`

	// MaxAttempts is the attempt cap for transient failures.
	MaxAttempts int `yaml:"max_attempts,omitempty"`

	// MaxBodySize caps the bytes read per response.
	MaxBodySize int64 `yaml:"max_body_size,omitempty"`

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string `yaml:"user_agent,omitempty"`

	// Cookie is an HTTP cookie to send. Format: "name=value; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra request headers.
	Headers map[string]string `yaml:"headers,omitempty"`

	// RespectRobots enables robots.txt handling. Default true.
	RespectRobots *bool `yaml:"respect_robots,omitempty"`

	// Probes enables active path probing. Default true.
	Probes *bool `yaml:"probes,omitempty"`

	// ProbeAllHosts probes every discovered in-scope host instead of only the seed host.
	// Default false.
	ProbeAllHosts *bool `yaml:"probe_all_hosts,omitempty"`

	// ProbesIgnoreRobots exempts active probes from robots.txt. Default true.
	ProbesIgnoreRobots *bool `yaml:"probes_ignore_robots,omitempty"`

	// FollowAssets also queues image, script and stylesheet URLs. Default false.
	FollowAssets *bool `yaml:"follow_assets,omitempty"`

	// VerifyTLS enables certificate verification. Default true. When false,
	// the tls detector still reports what verification would have rejected.
	VerifyTLS *bool `yaml:"verify_tls,omitempty"`

	// Detectors enables (true) or disables (false) detectors by name.
	// Detectors not listed keep their default, which is enabled.
	Detectors map[string]bool `yaml:"detectors,omitempty"`
}

// UnmarshalYAML accepts either a bare URL string or a mapping.
// A bare string keeps the plain "sites: [url, ...]" list format working.
func (s *SiteConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*s = SiteConfig{URL: node.Value}
		return nil
	}
	type plain SiteConfig
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = SiteConfig(p)
	return nil
}

// File represents the structure of the sitescan configuration file.
type File struct {
	// Defaults contains settings applied to all sites unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites lists the sites to crawl, one Target each.
	Sites []SiteConfig `yaml:"sites"`

	// SearchForFiles lists extra paths probed on every probed host.
	// "{domain}" is replaced with the host name, e.g. "backup/{domain}.zip".
	SearchForFiles []string `yaml:"search_for_files,omitempty"`
}

// merge returns base with every non-zero field of over applied on top.
func merge(base, over SiteConfig) SiteConfig {
	result := base
	if over.URL != "" {
		result.URL = over.URL
	}
	if over.Name != "" {
		result.Name = over.Name
	}
	if len(over.AllowedHosts) > 0 {
		result.AllowedHosts = over.AllowedHosts
	}
	if len(over.PathPrefixes) > 0 {
		result.PathPrefixes = over.PathPrefixes
	}
	if len(over.IgnorePatterns) > 0 {
		result.IgnorePatterns = over.IgnorePatterns
	}
	if len(over.FollowPatterns) > 0 {
		result.FollowPatterns = over.FollowPatterns
	}
	if over.MaxDepth != nil {
		result.MaxDepth = over.MaxDepth
	}
	if over.MaxPages != 0 {
		result.MaxPages = over.MaxPages
	}
	if over.Workers != 0 {
		result.Workers = over.Workers
	}
	if over.CrawlTimeout != 0 {
		result.CrawlTimeout = over.CrawlTimeout
	}
	if over.RequestTimeout != 0 {
		result.RequestTimeout = over.RequestTimeout
	}
	if over.Delay != nil {
		result.Delay = over.Delay
	}
	if over.MaxRedirects != nil {
		result.MaxRedirects = over.MaxRedirects
	}
	if over.MaxAttempts != 0 {
		result.MaxAttempts = over.MaxAttempts
	}
	if over.MaxBodySize != 0 {
		result.MaxBodySize = over.MaxBodySize
	}
	if over.UserAgent != "" {
		result.UserAgent = over.UserAgent
	}
	if over.Cookie != "" {
		result.Cookie = over.Cookie
	}
	if len(over.Headers) > 0 {
		headers := make(map[string]string, len(base.Headers)+len(over.Headers))
		maps.Copy(headers, base.Headers)
		maps.Copy(headers, over.Headers)
		result.Headers = headers
	}
	if over.RespectRobots != nil {
		result.RespectRobots = over.RespectRobots
	}
	if over.Probes != nil {
		result.Probes = over.Probes
	}
	if over.ProbeAllHosts != nil {
		result.ProbeAllHosts = over.ProbeAllHosts
	}
	if over.ProbesIgnoreRobots != nil {
		result.ProbesIgnoreRobots = over.ProbesIgnoreRobots
	}
	if over.FollowAssets != nil {
		result.FollowAssets = over.FollowAssets
	}
	if over.VerifyTLS != nil {
		result.VerifyTLS = over.VerifyTLS
	}
	if len(over.Detectors) > 0 {
		detectors := make(map[string]bool, len(base.Detectors)+len(over.Detectors))
		maps.Copy(detectors, base.Detectors)
		maps.Copy(detectors, over.Detectors)
		result.Detectors = detectors
	}
	return result
}

// GetSiteConfig returns the effective configuration of the site at index i:
// defaults, then the site itself, then overrides.
func (cf *File) GetSiteConfig(i int, overrides SiteConfig) SiteConfig {
	site := merge(cf.Defaults, cf.Sites[i])
	site = merge(site, overrides)
	// The site URL and name always come from the site entry.
	site.URL = cf.Sites[i].URL
	site.Name = cf.Sites[i].Name
	return site
}

// Targets resolves and validates every configured site.
// Any invalid site aborts the whole run, so the error names the site.
func (cf *File) Targets(overrides SiteConfig) ([]Target, error) {
	if len(cf.Sites) == 0 {
		return nil, ErrNoSites
	}

	targets := make([]Target, 0, len(cf.Sites))
	seen := make(map[string]struct{}, len(cf.Sites))
	for i := range cf.Sites {
		target, err := newTarget(cf.GetSiteConfig(i, overrides), cf.SearchForFiles)
		if err != nil {
			return nil, fmt.Errorf("site %d (%s): %w", i+1, cf.Sites[i].URL, err)
		}
		if _, dup := seen[target.Name]; dup {
			return nil, fmt.Errorf("site %d: %w: %s", i+1, ErrDuplicateTarget, target.Name)
		}
		seen[target.Name] = struct{}{}
		targets = append(targets, target)
	}
	return targets, nil
}

package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitescan"

	// DefaultRequestTimeout bounds a single HTTP request, redirects included.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultCrawlTimeout is the wall-clock budget for one target.
	DefaultCrawlTimeout = 10 * time.Minute

	// DefaultMaxDepth limits how many links away from the seed the crawl goes.
	// Exposures such as /.git/config sit close to the root, so a shallow crawl
	// finds most of them.
	DefaultMaxDepth = 3

	// DefaultMaxPages is the fetch budget per target, probes included.
	DefaultMaxPages = 200

	// DefaultWorkers is the size of the worker pool per target.
	DefaultWorkers = 4

	// MaxWorkers caps the worker pool per target.
	MaxWorkers = 64

	// DefaultParallelism is the number of targets crawled at the same time.
	DefaultParallelism = 1

	// DefaultHostDelay is the minimum delay between two requests to the same host.
	DefaultHostDelay = 500 * time.Millisecond

	// DefaultMaxRedirects is the redirect cap per fetch.
	DefaultMaxRedirects = 5

	// DefaultMaxAttempts is the number of attempts for a transient failure, first try included.
	DefaultMaxAttempts = 3

	// DefaultRetryBaseDelay is the backoff before the second attempt; it doubles each retry.
	DefaultRetryBaseDelay = 250 * time.Millisecond

	// DefaultRetryMaxDelay caps the backoff between attempts.
	DefaultRetryMaxDelay = 5 * time.Second

	// DefaultUserAgent identifies sitescan in HTTP requests.
	DefaultUserAgent = "sitescan/1.0 (+https://github.com/nao1215/sitescan)"

	// DefaultMaxBodySize limits the response body size to read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultDatabaseFile is the file name of the history database inside DBDir.
	DefaultDatabaseFile = "sitescan.db"
)

// Report formats.
const (
	FormatYAML     = "yaml"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// Config holds the run-level options of one sitescan invocation.
// Per-site crawl settings live in File and are resolved into Target values.
type Config struct {
	// ConfigFilePath is the path of the YAML site configuration.
	ConfigFilePath string

	// ReportFile is the output path. Empty means stdout.
	ReportFile string

	// Format is one of FormatYAML, FormatJSON, FormatMarkdown or FormatText.
	// Empty means "infer from ReportFile, default YAML".
	Format string

	// Verbosity is the number of -v flags given.
	Verbosity int

	// Parallelism is the number of targets crawled concurrently.
	Parallelism int

	// Rate is a process-wide request limit in requests per second shared by
	// every target. Zero disables the limit.
	Rate float64

	// ProxyURL routes all requests through an upstream proxy.
	// Supported schemes are socks5, socks5h, http and https.
	ProxyURL string

	// DBDir is the directory of the scan history database.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveToDB stores fetch records and reports in the history database.
	SaveToDB bool

	// Overrides are applied on top of every site after defaults, so that
	// command line flags win over the configuration file.
	Overrides SiteConfig
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Parallelism: DefaultParallelism,
		DBDir:       XDGDataDir(),
		SaveToDB:    true,
	}
}

// XDGDataDir returns the XDG data directory for sitescan.
// On Linux: ~/.local/share/sitescan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitescan.
// On Linux: ~/.config/sitescan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DatabasePath returns the path of the history database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DBDir, DefaultDatabaseFile)
}

// ResolveFormat returns the effective report format. An explicit Format wins;
// otherwise the extension of ReportFile decides and YAML is the fallback.
func (c *Config) ResolveFormat() string {
	if c.Format != "" {
		return strings.ToLower(c.Format)
	}
	switch strings.ToLower(filepath.Ext(c.ReportFile)) {
	case ".json":
		return FormatJSON
	case ".md", ".markdown":
		return FormatMarkdown
	case ".txt":
		return FormatText
	default:
		return FormatYAML
	}
}

// Validate checks if the run configuration is valid.
// It returns the first problem found as a wrapped sentinel error.
func (c *Config) Validate() error {
	if c.ConfigFilePath == "" {
		return ErrNoConfigFile
	}

	if c.Parallelism <= 0 {
		return ErrInvalidParallelism
	}

	if c.Rate < 0 {
		return ErrInvalidRate
	}

	switch c.ResolveFormat() {
	case FormatYAML, FormatJSON, FormatMarkdown, FormatText:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Format)
	}

	if c.ProxyURL != "" {
		u, err := url.Parse(c.ProxyURL)
		if err != nil || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidProxy, c.ProxyURL)
		}
		switch u.Scheme {
		case "socks5", "socks5h", "http", "https":
		default:
			return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProxy, u.Scheme)
		}
	}

	if c.SaveToDB && c.DBDir == "" {
		return ErrNoDBDir
	}

	return nil
}

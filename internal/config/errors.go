package config

import "errors"

// Configuration errors.
// Validation wraps these with the offending value so callers can use
// errors.Is while users still see which site or field is wrong.
var (
	// ErrNoConfigFile is returned when no configuration file path was given.
	ErrNoConfigFile = errors.New("no configuration file specified")

	// ErrNoSites is returned when the configuration file lists no sites.
	ErrNoSites = errors.New("no sites configured")

	// ErrInvalidTargetURL is returned when a site URL is not an absolute http(s) URL.
	ErrInvalidTargetURL = errors.New("invalid site url: must be an absolute http or https url")

	// ErrDuplicateTarget is returned when two sites resolve to the same name.
	ErrDuplicateTarget = errors.New("duplicate site")

	// ErrInvalidScope is returned when an allowed host or path prefix is malformed.
	ErrInvalidScope = errors.New("invalid scope rule")

	// ErrInvalidPattern is returned when an ignore or follow pattern is not a valid glob.
	ErrInvalidPattern = errors.New("invalid url pattern")

	// ErrInvalidDepth is returned when max_depth is negative.
	ErrInvalidDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidMaxPages is returned when max_pages is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidWorkers is returned when workers is outside 1..MaxWorkers.
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDelay is returned when the per-host delay is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidRetry is returned when retry or redirect settings are negative.
	ErrInvalidRetry = errors.New("invalid retry settings")

	// ErrInvalidMaxBodySize is returned when max_body_size is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidProbePath is returned when a search_for_files entry is empty or a full URL.
	ErrInvalidProbePath = errors.New("invalid probe path: must be a non-empty path relative to the site")

	// ErrInvalidParallelism is returned when the target parallelism is not positive.
	ErrInvalidParallelism = errors.New("invalid parallelism: must be positive")

	// ErrInvalidRate is returned when the global rate is negative.
	ErrInvalidRate = errors.New("invalid rate: must be non-negative")

	// ErrInvalidFormat is returned for an unknown report format.
	ErrInvalidFormat = errors.New("invalid report format: must be yaml, json, markdown or text")

	// ErrInvalidProxy is returned for a malformed proxy URL.
	ErrInvalidProxy = errors.New("invalid proxy url")

	// ErrNoDBDir is returned when history saving is enabled without a directory.
	ErrNoDBDir = errors.New("database directory is empty")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)

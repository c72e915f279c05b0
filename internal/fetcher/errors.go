package fetcher

import "errors"

var (
	// ErrInvalidProxy is returned when the proxy URL cannot be used.
	ErrInvalidProxy = errors.New("invalid proxy URL")

	// ErrMissingLocation is recorded when a redirect response has no usable Location header.
	ErrMissingLocation = errors.New("redirect without usable Location header")
)

package model

import (
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// FetchResult is one fetched resource.
//
// A FetchResult is created by the fetcher, handed to the detector pipeline
// and the link extractor, and then dropped. Nothing keeps a reference to it
// after the page has been processed, so the body does not outlive the page.
type FetchResult struct {
	// URL is the URL that was requested.
	URL string

	// FinalURL is the URL of the last response after same-site redirects.
	FinalURL string

	// StatusCode is the HTTP status of the final response, or 0 when no response arrived.
	StatusCode int

	// Header holds the response headers. Lookups through Header.Get are case-insensitive.
	Header http.Header

	// Body is the response body after Content-Encoding decoding, capped at the
	// configured maximum body size.
	Body []byte

	// Truncated is true when the body was cut at the size cap.
	Truncated bool

	// Elapsed is the wall time spent on the fetch including retries and redirects.
	Elapsed time.Duration

	// Attempts is the number of request attempts made for the final URL.
	Attempts int

	// TLS is the negotiated connection state of the final response, if any.
	TLS *tls.ConnectionState

	// CrossSiteRedirect is the Location of a redirect to another site that
	// was recorded instead of followed.
	CrossSiteRedirect string

	// Depth is the discovery depth of the entry this result was fetched for.
	Depth int

	// Probe is true when the URL was requested as an active probe rather than
	// discovered through a link.
	Probe bool

	// Err is set when the fetch failed. Results with an http-status error
	// still carry the status, headers and body of the response.
	Err *FetchError
}

// OK reports whether the fetch succeeded.
func (r *FetchResult) OK() bool {
	return r != nil && r.Err == nil
}

// ContentType returns the media type of the response without parameters,
// lowercased. Returns an empty string if the header is missing or malformed.
func (r *FetchResult) ContentType() string {
	raw := r.Header.Get("Content-Type")
	if raw == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(raw, ";", 2)[0]))
	}
	return mediaType
}

// IsHTML returns true if the response content type indicates HTML.
func (r *FetchResult) IsHTML() bool {
	ct := r.ContentType()
	return ct == "text/html" || ct == "application/xhtml+xml"
}

// IsText returns true for textual responses, including HTML, JSON and XML.
func (r *FetchResult) IsText() bool {
	ct := r.ContentType()
	switch {
	case strings.HasPrefix(ct, "text/"):
		return true
	case ct == "application/json", ct == "application/xml", ct == "application/javascript",
		ct == "application/x-javascript", ct == "application/xhtml+xml":
		return true
	case strings.HasSuffix(ct, "+json"), strings.HasSuffix(ct, "+xml"):
		return true
	case ct == "":
		return len(r.Body) > 0 && !looksBinary(r.Body)
	}
	return false
}

// IsImage returns true if the response content type indicates an image.
func (r *FetchResult) IsImage() bool {
	return strings.HasPrefix(r.ContentType(), "image/")
}

// Text returns the body transcoded to UTF-8. The encoding is taken from the
// Content-Type charset parameter, a BOM or an HTML meta tag, in that order.
func (r *FetchResult) Text() string {
	if len(r.Body) == 0 {
		return ""
	}
	enc, name, _ := charset.DetermineEncoding(r.Body, r.Header.Get("Content-Type"))
	if name == "utf-8" || enc == nil {
		return string(r.Body)
	}
	decoded, err := enc.NewDecoder().Bytes(r.Body)
	if err != nil {
		return string(r.Body)
	}
	return string(decoded)
}

// Path returns the path of the final URL, or "/" when it cannot be parsed.
func (r *FetchResult) Path() string {
	u, err := url.Parse(r.FinalURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// Origin returns scheme://host of the final URL.
func (r *FetchResult) Origin() string {
	u, err := url.Parse(r.FinalURL)
	if err != nil {
		return r.FinalURL
	}
	return u.Scheme + "://" + u.Host
}

// Hash returns the hex-encoded SHA-256 of the body, or an empty string for an empty body.
func (r *FetchResult) Hash() string {
	if len(r.Body) == 0 {
		return ""
	}
	sum := sha256.Sum256(r.Body)
	return hex.EncodeToString(sum[:])
}

// looksBinary reports whether the first bytes of b contain a NUL byte,
// the same heuristic git and grep use.
func looksBinary(b []byte) bool {
	n := min(len(b), 512)
	for _, c := range b[:n] {
		if c == 0 {
			return true
		}
	}
	return false
}

// FetchErrorKind classifies fetch failures.
type FetchErrorKind string

const (
	// FetchErrorTimeout indicates the request did not complete within its timeout.
	FetchErrorTimeout FetchErrorKind = "timeout"
	// FetchErrorConnectionRefused indicates the server refused the TCP connection.
	FetchErrorConnectionRefused FetchErrorKind = "connection-refused"
	// FetchErrorConnectionReset indicates the connection was dropped mid-request.
	FetchErrorConnectionReset FetchErrorKind = "connection-reset"
	// FetchErrorDNS indicates the host name could not be resolved.
	FetchErrorDNS FetchErrorKind = "dns"
	// FetchErrorTLS indicates the TLS handshake or certificate validation failed.
	FetchErrorTLS FetchErrorKind = "tls"
	// FetchErrorTooManyRedirects indicates the redirect cap was exceeded.
	FetchErrorTooManyRedirects FetchErrorKind = "too-many-redirects"
	// FetchErrorHTTPStatus indicates a 4xx or 5xx response.
	FetchErrorHTTPStatus FetchErrorKind = "http-status"
	// FetchErrorOther covers everything else.
	FetchErrorOther FetchErrorKind = "other"
)

// Transient reports whether failures of this kind are worth retrying.
func (k FetchErrorKind) Transient() bool {
	return k == FetchErrorTimeout || k == FetchErrorConnectionReset
}

// FetchError describes why a fetch failed.
type FetchError struct {
	// Kind classifies the failure.
	Kind FetchErrorKind

	// Status is the HTTP status for FetchErrorHTTPStatus, zero otherwise.
	Status int

	// URL is the URL whose request failed.
	URL string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch {
	case e.Kind == FetchErrorHTTPStatus:
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

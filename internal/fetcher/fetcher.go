package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/nao1215/sitescan/internal/model"
)

// Gate blocks until a request to host may start.
type Gate interface {
	Wait(ctx context.Context, host string) error
}

// ScopeChecker decides whether a redirect target may be followed.
type ScopeChecker interface {
	InScope(u *url.URL) bool
}

// Claimer hands out redirect targets at most once per crawl.
type Claimer interface {
	Claim(u *url.URL) bool
}

// Options configures a Fetcher.
type Options struct {
	// RequestTimeout bounds one attempt, body included.
	RequestTimeout time.Duration

	// MaxRedirects is the number of same-site redirects followed per fetch.
	MaxRedirects int

	// MaxBodySize caps the decoded body. Zero or less means no cap.
	MaxBodySize int64

	// UserAgent is sent with every request.
	UserAgent string

	// Retry bounds retries of transient failures.
	Retry RetryPolicy
}

// Fetcher performs GET requests with retries and scope-checked redirects.
// It is safe for concurrent use.
type Fetcher struct {
	client  *http.Client
	opts    Options
	gate    Gate
	scope   ScopeChecker
	claimer Claimer
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithGate makes retries and redirect hops wait for the per-host politeness
// delay. The first attempt of a fetch is expected to be cleared by the caller.
func WithGate(g Gate) Option {
	return func(f *Fetcher) {
		f.gate = g
	}
}

// WithScope restricts redirects to URLs inside scope.
func WithScope(s ScopeChecker) Option {
	return func(f *Fetcher) {
		f.scope = s
	}
}

// WithClaimer makes the fetcher claim each redirect target before following
// it. A redirect to a URL that is already claimed is not followed and the
// redirect response is returned as is.
func WithClaimer(c Claimer) Option {
	return func(f *Fetcher) {
		f.claimer = c
	}
}

// WithRateLimiter makes every request attempt wait on limiter.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher using client. The client must not follow redirects
// itself; use NewHTTPClient.
func New(client *http.Client, opts Options, options ...Option) *Fetcher {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry.MaxAttempts = 1
	}
	if opts.MaxRedirects < 0 {
		opts.MaxRedirects = 0
	}

	f := &Fetcher{
		client: client,
		opts:   opts,
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// response is the outcome of one successful round trip.
type response struct {
	status    int
	header    http.Header
	body      []byte
	truncated bool
	tls       *tls.ConnectionState
}

// Fetch retrieves rawURL. It always returns a result; on failure Err is set
// and, for HTTP status errors, the response is kept.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) *model.FetchResult {
	start := time.Now()
	result := &model.FetchResult{
		URL:      rawURL,
		FinalURL: rawURL,
		Header:   http.Header{},
	}
	defer func() {
		result.Elapsed = time.Since(start)
	}()

	current, err := url.Parse(rawURL)
	if err != nil || !current.IsAbs() {
		result.Err = &model.FetchError{Kind: model.FetchErrorOther, URL: rawURL, Err: fmt.Errorf("invalid url: %w", err)}
		return result
	}

	redirects := 0
	for {
		resp, attempts, ferr := f.fetchWithRetry(ctx, current, redirects > 0)
		result.Attempts = attempts
		result.FinalURL = current.String()
		if ferr != nil {
			result.StatusCode = 0
			result.Header = http.Header{}
			result.Body = nil
			result.Truncated = false
			result.TLS = nil
			result.Err = ferr
			return result
		}

		result.StatusCode = resp.status
		result.Header = resp.header
		result.Body = resp.body
		result.Truncated = resp.truncated
		result.TLS = resp.tls

		if !isRedirect(resp.status) {
			if resp.status >= http.StatusBadRequest {
				result.Err = &model.FetchError{Kind: model.FetchErrorHTTPStatus, Status: resp.status, URL: current.String()}
			}
			return result
		}

		next, ok := location(current, resp.header)
		if !ok {
			f.logger.Debug("redirect without location", "url", current.String(), "status", resp.status)
			return result
		}
		if !sameSite(current, next) {
			result.CrossSiteRedirect = next.String()
			return result
		}
		if f.scope != nil && !f.scope.InScope(next) {
			f.logger.Debug("redirect leaves scope", "from", current.String(), "to", next.String())
			return result
		}
		if redirects >= f.opts.MaxRedirects {
			result.Err = &model.FetchError{
				Kind: model.FetchErrorTooManyRedirects,
				URL:  rawURL,
				Err:  fmt.Errorf("stopped after %d redirects", redirects),
			}
			return result
		}
		if f.claimer != nil && !f.claimer.Claim(next) {
			f.logger.Debug("redirect target already visited", "from", current.String(), "to", next.String())
			return result
		}
		redirects++
		current = next
	}
}

// fetchWithRetry runs the attempt loop for one URL.
// When gated is false the first attempt skips the politeness gate.
func (f *Fetcher) fetchWithRetry(ctx context.Context, u *url.URL, gated bool) (*response, int, *model.FetchError) {
	state := startRetry()
	for {
		if gated || state.attempt > 1 {
			if err := f.wait(ctx, u); err != nil {
				return nil, state.attempt, classify(u.String(), err)
			}
		} else if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, state.attempt, classify(u.String(), err)
			}
		}

		resp, ferr := f.do(ctx, u)
		state = state.observe(f.opts.Retry, ferr)
		if state.terminal() {
			return resp, state.attempt, state.err
		}

		delay := f.opts.Retry.Backoff(state.attempt - 1)
		f.logger.Debug("retrying fetch",
			"url", u.String(),
			"attempt", state.attempt,
			"delay", delay,
			"error", ferr,
		)
		if err := sleep(ctx, delay); err != nil {
			return nil, state.attempt - 1, ferr
		}
		state = state.resume()
	}
}

// wait clears the politeness gate and the global rate limit.
func (f *Fetcher) wait(ctx context.Context, u *url.URL) error {
	if f.gate != nil {
		if err := f.gate.Wait(ctx, hostKey(u)); err != nil {
			return err
		}
	}
	if f.limiter != nil {
		return f.limiter.Wait(ctx)
	}
	return nil
}

// do performs a single attempt.
func (f *Fetcher) do(ctx context.Context, u *url.URL) (*response, *model.FetchError) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &model.FetchError{Kind: model.FetchErrorOther, URL: u.String(), Err: err}
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(u.String(), err)
	}
	defer resp.Body.Close()

	body, truncated, err := readBody(resp.Body, resp.Header.Get("Content-Encoding"), f.opts.MaxBodySize)
	if err != nil {
		return nil, classify(u.String(), err)
	}

	header := resp.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	return &response{
		status:    resp.StatusCode,
		header:    header,
		body:      body,
		truncated: truncated,
		tls:       resp.TLS,
	}, nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// location resolves the Location header of a redirect against from.
func location(from *url.URL, header http.Header) (*url.URL, bool) {
	raw := strings.TrimSpace(header.Get("Location"))
	if raw == "" {
		return nil, false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	next := from.ResolveReference(ref)
	if next.Scheme != "http" && next.Scheme != "https" {
		return nil, false
	}
	next.Fragment = ""
	next.RawFragment = ""
	return next, true
}

// sameSite reports whether a and b share a registrable domain. Hosts without
// one, such as IP addresses and localhost, must match exactly.
func sameSite(a, b *url.URL) bool {
	ha := strings.ToLower(a.Hostname())
	hb := strings.ToLower(b.Hostname())
	if ha == hb {
		return true
	}
	if net.ParseIP(ha) != nil || net.ParseIP(hb) != nil {
		return false
	}
	sa, errA := publicsuffix.EffectiveTLDPlusOne(ha)
	sb, errB := publicsuffix.EffectiveTLDPlusOne(hb)
	if errA != nil || errB != nil {
		return false
	}
	return sa == sb
}

// hostKey returns host[:port] with default ports removed, the form the
// politeness gate is keyed on.
func hostKey(u *url.URL) string {
	host := strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(host, ":80"):
		return strings.TrimSuffix(host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(host, ":443"):
		return strings.TrimSuffix(host, ":443")
	}
	return host
}

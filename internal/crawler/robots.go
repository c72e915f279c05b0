package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// maxRobotsSize caps the robots.txt body; Google stops reading at 500 KiB.
const maxRobotsSize = 500 * 1024

// Robots evaluates robots.txt rules for one crawl.
//
// Each host's robots.txt is fetched at most once: concurrent lookups for a
// host that is not cached yet share a single request. Fetch failures allow
// everything, as do 4xx responses; 5xx responses disallow everything until
// the crawl ends.
type Robots struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	gate      *HostGate
	logger    *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]*robotstxt.RobotsData
}

// NewRobots creates a robots.txt cache. gate may be nil.
func NewRobots(client *http.Client, userAgent string, timeout time.Duration, gate *HostGate, logger *slog.Logger) *Robots {
	if logger == nil {
		logger = slog.Default()
	}
	return &Robots{
		client:    client,
		userAgent: userAgent,
		timeout:   timeout,
		gate:      gate,
		logger:    logger,
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether the crawler may fetch u.
func (r *Robots) Allowed(ctx context.Context, u *url.URL) bool {
	if u == nil || !u.IsAbs() {
		return false
	}
	data := r.Load(ctx, u)
	if data == nil {
		return true
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return data.TestAgent(p, r.userAgent)
}

// Load returns the parsed robots.txt of u's host, fetching it on first use.
// A nil result means no rules apply.
func (r *Robots) Load(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	origin := u.Scheme + "://" + canonicalHost(u.Scheme, u.Host)

	r.mu.RLock()
	data, ok := r.cache[origin]
	r.mu.RUnlock()
	if ok {
		return data
	}

	v, _, _ := r.group.Do(origin, func() (any, error) {
		r.mu.RLock()
		cached, ok := r.cache[origin]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		data, err := r.fetch(ctx, origin)
		if err != nil {
			r.logger.Debug("robots.txt unavailable, allowing all", "origin", origin, "error", err)
		}
		r.mu.Lock()
		r.cache[origin] = data
		r.mu.Unlock()
		return data, nil
	})
	data, _ = v.(*robotstxt.RobotsData)
	return data
}

func (r *Robots) fetch(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, err
	}
	if r.gate != nil {
		if err := r.gate.Wait(ctx, canonicalHost(u.Scheme, u.Host)); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}

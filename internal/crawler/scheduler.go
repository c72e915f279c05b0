package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nao1215/sitescan/internal/config"
	"github.com/nao1215/sitescan/internal/detector"
	"github.com/nao1215/sitescan/internal/fetcher"
	"github.com/nao1215/sitescan/internal/model"
)

// errCrawlTimeout is the cancellation cause when a target's wall-clock budget runs out.
var errCrawlTimeout = errors.New("crawl timeout reached")

// FindingSink receives findings as soon as a detector emits them.
// It is called from several workers at once.
type FindingSink interface {
	Add(f model.Finding) bool
}

// FetchRecorder is told about every completed fetch, failed ones included.
type FetchRecorder interface {
	RecordFetch(ctx context.Context, target string, depth int, result *model.FetchResult) error
}

// Scheduler crawls targets: it runs a worker pool that takes entries from a
// Frontier, fetches them, passes the results through the detector pipeline
// and feeds extracted links back into the Frontier.
//
// A Scheduler holds no per-target state and can run several targets at once.
type Scheduler struct {
	pipeline *detector.Pipeline
	sink     FindingSink
	recorder FetchRecorder
	limiter  *rate.Limiter
	proxyURL string
	logger   *slog.Logger

	retryBase time.Duration
	retryMax  time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithRateLimiter makes every request of every target wait on limiter.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(s *Scheduler) {
		s.limiter = l
	}
}

// WithRecorder reports every fetch to r.
func WithRecorder(r FetchRecorder) Option {
	return func(s *Scheduler) {
		s.recorder = r
	}
}

// WithProxy routes requests through the proxy at rawURL.
func WithProxy(rawURL string) Option {
	return func(s *Scheduler) {
		s.proxyURL = rawURL
	}
}

// WithRetryBackoff sets the backoff before the first retry and its cap.
func WithRetryBackoff(base, maxDelay time.Duration) Option {
	return func(s *Scheduler) {
		s.retryBase = base
		s.retryMax = maxDelay
	}
}

// NewScheduler creates a scheduler that inspects pages with pipeline and
// sends findings to sink.
func NewScheduler(pipeline *detector.Pipeline, sink FindingSink, opts ...Option) *Scheduler {
	s := &Scheduler{
		pipeline:  pipeline,
		sink:      sink,
		logger:    slog.Default(),
		retryBase: config.DefaultRetryBaseDelay,
		retryMax:  config.DefaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run crawls target until its frontier is exhausted, a budget is used up or
// ctx is cancelled, and returns the crawl statistics. Findings are sent to
// the sink while the crawl runs.
//
// The summary is always well formed, also for a cancelled crawl. An error
// is returned only when the crawl could not be set up.
func (s *Scheduler) Run(ctx context.Context, target config.Target) (model.CrawlSummary, error) {
	client, err := fetcher.NewHTTPClient(fetcher.ClientOptions{
		ProxyURL:    s.proxyURL,
		VerifyTLS:   target.VerifyTLS,
		Cookie:      target.Cookie,
		Headers:     target.Headers,
		DialTimeout: target.RequestTimeout,
	})
	if err != nil {
		return model.CrawlSummary{}, fmt.Errorf("create http client for %s: %w", target.Name, err)
	}

	c := s.newCrawl(target, client)
	return c.run(ctx), nil
}

// crawl is the state of one target's crawl.
type crawl struct {
	target    config.Target
	logger    *slog.Logger
	sink      FindingSink
	recorder  FetchRecorder
	scope     *Scope
	frontier  *Frontier
	fetcher   *fetcher.Fetcher
	pipeline  *detector.Pipeline
	extractor *Extractor
	robots    *Robots
	probes    []string

	mu       sync.Mutex
	summary  model.CrawlSummary
	probed   map[string]struct{}
	budgeted bool
}

func (s *Scheduler) newCrawl(target config.Target, client *http.Client) *crawl {
	logger := s.logger.With("target", target.Name)
	scope := NewScope(target)
	gate := NewHostGate(target.Delay)
	frontier := NewFrontier(scope, gate, target.MaxDepth, target.MaxPages)

	fetchOpts := []fetcher.Option{
		fetcher.WithGate(gate),
		fetcher.WithScope(scope),
		fetcher.WithClaimer(frontier),
		fetcher.WithLogger(logger),
	}
	if s.limiter != nil {
		fetchOpts = append(fetchOpts, fetcher.WithRateLimiter(s.limiter))
	}

	c := &crawl{
		target:   target,
		logger:   logger,
		sink:     s.sink,
		recorder: s.recorder,
		scope:    scope,
		frontier: frontier,
		fetcher: fetcher.New(client, fetcher.Options{
			RequestTimeout: target.RequestTimeout,
			MaxRedirects:   target.MaxRedirects,
			MaxBodySize:    target.MaxBodySize,
			UserAgent:      target.UserAgent,
			Retry: fetcher.RetryPolicy{
				MaxAttempts: target.MaxAttempts,
				BaseDelay:   s.retryBase,
				MaxDelay:    s.retryMax,
			},
		}, fetchOpts...),
		pipeline:  s.pipeline.ForTarget(target),
		extractor: NewExtractor(scope, target.FollowAssets),
		probed:    make(map[string]struct{}),
	}
	if target.RespectRobots {
		c.robots = NewRobots(client, target.UserAgent, target.RequestTimeout, gate, logger)
	}
	if target.Probes {
		c.probes = append(c.pipeline.ProbePaths(), target.ProbePaths...)
	}
	return c
}

func (c *crawl) run(parent context.Context) model.CrawlSummary {
	start := time.Now()
	c.summary.StartedAt = start

	var ctx context.Context
	var cancel context.CancelFunc
	if c.target.CrawlTimeout > 0 {
		ctx, cancel = context.WithTimeoutCause(parent, c.target.CrawlTimeout, errCrawlTimeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	defer cancel()

	c.logger.Info("crawl started", "base_url", c.target.BaseURL, "workers", c.workers())

	seed := c.target.SeedURL()
	if c.robots != nil {
		c.robots.Load(ctx, seed)
	}
	c.frontier.Offer(Entry{URL: c.target.BaseURL, Seed: true})
	c.offerProbes(ctx, seed)

	var g errgroup.Group
	for range c.workers() {
		g.Go(func() error {
			return c.work(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Warn("worker stopped", "error", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary.Duration = time.Since(start)
	switch {
	case parent.Err() != nil:
		c.summary.Termination = model.TerminationCancelled
	case c.budgeted, errors.Is(context.Cause(ctx), errCrawlTimeout):
		c.summary.Termination = model.TerminationBudgetExhausted
	default:
		c.summary.Termination = model.TerminationComplete
	}

	c.logger.Info("crawl finished",
		"termination", c.summary.Termination,
		"pages", c.summary.PagesFetched,
		"errors", c.summary.Errors,
		"seen", c.frontier.SeenCount(),
		"duration", c.summary.Duration.Round(time.Millisecond),
	)
	return c.summary
}

func (c *crawl) workers() int {
	return min(max(c.target.Workers, 1), config.MaxWorkers)
}

// work takes entries until the frontier reports completion, the budget is
// used up or ctx is done.
func (c *crawl) work(ctx context.Context) error {
	for {
		entry, err := c.frontier.Take(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrFrontierDone):
			return nil
		case errors.Is(err, ErrBudgetExhausted):
			c.mu.Lock()
			c.budgeted = true
			c.mu.Unlock()
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}

		c.process(ctx, entry)
	}
}

// process handles one entry. Once taken, an entry is finished even if ctx is
// cancelled meanwhile: the work runs on a context that outlives ctx by at
// most one request timeout.
func (c *crawl) process(ctx context.Context, entry Entry) {
	defer c.frontier.Done(entry)

	drainCtx, stop := drainContext(ctx, c.target.RequestTimeout)
	defer stop()

	result := c.fetcher.Fetch(drainCtx, entry.URL)
	c.count(entry, result)

	c.logger.Debug("fetched",
		"url", entry.URL,
		"status", result.StatusCode,
		"depth", entry.Depth,
		"attempts", result.Attempts,
		"elapsed", result.Elapsed.Round(time.Millisecond),
	)
	if result.Err != nil {
		c.logger.Debug("fetch failed", "url", entry.URL, "kind", result.Err.Kind, "error", result.Err)
	}

	findings, failures := c.pipeline.Inspect(drainCtx, c.target.Name, result)
	for _, f := range findings {
		c.sink.Add(f)
	}
	if failures > 0 {
		c.mu.Lock()
		c.summary.DetectorFailures += failures
		c.mu.Unlock()
	}

	if c.recorder != nil {
		if err := c.recorder.RecordFetch(drainCtx, c.target.Name, entry.Depth, result); err != nil {
			c.logger.Warn("failed to record fetch", "url", entry.URL, "error", err)
		}
	}

	if ctx.Err() != nil || !result.OK() || entry.Depth >= c.target.MaxDepth {
		return
	}
	for link := range c.extractor.Extract(result) {
		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		if c.robots != nil && !c.robots.Allowed(ctx, u) {
			c.logger.Debug("disallowed by robots.txt", "url", link)
			continue
		}
		if c.frontier.Offer(Entry{URL: link, From: entry.URL, Depth: entry.Depth + 1}) && c.target.ProbeAllHosts {
			c.offerProbes(ctx, u)
		}
	}
}

// count adds a fetch to the summary.
func (c *crawl) count(entry Entry, result *model.FetchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.summary.PagesFetched++
	c.summary.MaxDepthReached = max(c.summary.MaxDepthReached, entry.Depth)
	if result.Err != nil {
		c.summary.Errors++
		if c.summary.ErrorsByKind == nil {
			c.summary.ErrorsByKind = make(map[string]int)
		}
		c.summary.ErrorsByKind[string(result.Err.Kind)]++
	}
}

// offerProbes queues the probe paths for the host of u once per crawl.
func (c *crawl) offerProbes(ctx context.Context, u *url.URL) {
	if len(c.probes) == 0 {
		return
	}
	host := canonicalHost(u.Scheme, u.Host)
	origin := u.Scheme + "://" + host

	c.mu.Lock()
	if _, done := c.probed[origin]; done {
		c.mu.Unlock()
		return
	}
	c.probed[origin] = struct{}{}
	c.mu.Unlock()

	checkRobots := c.robots != nil && !c.target.ProbesIgnoreRobots
	for _, p := range config.ExpandProbePaths(c.probes, host) {
		probe, err := url.Parse(origin + p)
		if err != nil {
			continue
		}
		if checkRobots && !c.robots.Allowed(ctx, probe) {
			continue
		}
		c.frontier.Offer(Entry{URL: probe.String(), Probe: true})
	}
}

// drainContext returns a context that is not cancelled with parent but is
// cancelled grace after parent is done.
func drainContext(parent context.Context, grace time.Duration) (context.Context, context.CancelFunc) {
	d := newDrain(parent, grace)
	return d.ctx, d.stop
}

// drain holds the grace timer of a drainContext so that stop can release it.
type drain struct {
	ctx        context.Context
	cancel     context.CancelFunc
	stopParent func() bool

	mu    sync.Mutex
	timer *time.Timer
}

func newDrain(parent context.Context, grace time.Duration) *drain {
	d := &drain{}
	d.ctx, d.cancel = context.WithCancel(context.WithoutCancel(parent))
	d.stopParent = context.AfterFunc(parent, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.ctx.Err() == nil {
			d.timer = time.AfterFunc(grace, d.cancel)
		}
	})
	return d
}

func (d *drain) stop() {
	d.stopParent()
	d.cancel()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

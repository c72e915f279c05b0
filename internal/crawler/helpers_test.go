package crawler

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/sitescan/internal/config"
	"github.com/nao1215/sitescan/internal/model"
)

var discardLogger = slog.New(slog.DiscardHandler)

// testTarget returns a target for baseURL with small limits and no probes,
// robots handling or politeness delay.
func testTarget(t *testing.T, baseURL string) config.Target {
	t.Helper()

	u, err := url.Parse(baseURL)
	if err != nil {
		t.Fatal(err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return config.Target{
		Name:           "test",
		BaseURL:        u.String(),
		AllowedHosts:   []string{strings.ToLower(u.Host)},
		PathPrefixes:   []string{"/"},
		MaxDepth:       5,
		MaxPages:       100,
		Workers:        4,
		CrawlTimeout:   10 * time.Second,
		RequestTimeout: 2 * time.Second,
		MaxRedirects:   5,
		MaxAttempts:    1,
		MaxBodySize:    1 << 20,
		UserAgent:      "sitescan-test",
		VerifyTLS:      true,
	}
}

// testScope returns a scope allowing hosts on every path.
func testScope(hosts ...string) *Scope {
	return NewScope(config.Target{AllowedHosts: hosts, PathPrefixes: []string{"/"}})
}

// page renders an HTML page linking to hrefs.
func page(hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, h, h)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// testSite serves fixed pages and records every request.
type testSite struct {
	pages map[string]string
	delay time.Duration

	mu    sync.Mutex
	hits  map[string]int
	times []time.Time
}

func newTestSite(pages map[string]string) *testSite {
	return &testSite{pages: pages, hits: make(map[string]int)}
}

func (s *testSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	s.times = append(s.times, time.Now())
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	body, ok := s.pages[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.URL.Path == "/robots.txt" || strings.HasPrefix(r.URL.Path, "/.git/") {
		w.Header().Set("Content-Type", "text/plain")
	} else {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	fmt.Fprint(w, body)
}

func (s *testSite) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *testSite) totalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}

func (s *testSite) requestTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	times := append([]time.Time(nil), s.times...)
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times
}

// findingCollector is a FindingSink for tests.
type findingCollector struct {
	mu       sync.Mutex
	findings []model.Finding
}

func (c *findingCollector) Add(f model.Finding) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.findings = append(c.findings, f)
	return true
}

func (c *findingCollector) all() []model.Finding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Finding(nil), c.findings...)
}

// timerPending reports whether the grace timer of d is still armed.
func (d *drain) timerPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

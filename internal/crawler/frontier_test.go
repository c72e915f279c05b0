package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFrontierOfferIsIdempotent(t *testing.T) {
	t.Parallel()

	f := NewFrontier(testScope("example.test"), NewHostGate(0), 3, 0)

	variants := []string{
		"http://example.test/a",
		"http://EXAMPLE.test:80/a",
		"http://example.test/a/",
		"http://example.test/a#top",
		"http://example.test/x/../a",
	}
	accepted := 0
	for _, v := range variants {
		if f.Offer(Entry{URL: v, Depth: 1}) {
			accepted++
		}
	}
	if accepted != 1 {
		t.Errorf("accepted %d variants, want 1", accepted)
	}
	if got := f.SeenCount(); got != 1 {
		t.Errorf("SeenCount() = %d, want 1", got)
	}
	if got := f.Pending(); got != 1 {
		t.Errorf("Pending() = %d, want 1", got)
	}
}

func TestFrontierOfferConcurrent(t *testing.T) {
	t.Parallel()

	f := NewFrontier(testScope("example.test"), NewHostGate(0), 3, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 10 {
				if f.Offer(Entry{URL: fmt.Sprintf("http://example.test/p%d", i), Depth: 1}) {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if accepted != 10 {
		t.Errorf("accepted %d, want 10", accepted)
	}
	if got := f.SeenCount(); got != 10 {
		t.Errorf("SeenCount() = %d, want 10", got)
	}
}

func TestFrontierOfferRejects(t *testing.T) {
	t.Parallel()

	f := NewFrontier(docsScope(), NewHostGate(0), 2, 0)

	tests := []struct {
		name  string
		entry Entry
		want  bool
	}{
		{"within depth", Entry{URL: "https://example.test/docs/a", Depth: 2}, true},
		{"too deep", Entry{URL: "https://example.test/docs/b", Depth: 3}, false},
		{"negative depth", Entry{URL: "https://example.test/docs/c", Depth: -1}, false},
		{"other host", Entry{URL: "https://other.test/docs/a", Depth: 1}, false},
		{"outside prefix", Entry{URL: "https://example.test/shop", Depth: 1}, false},
		{"probe outside prefix", Entry{URL: "https://example.test/.git/HEAD", Probe: true}, true},
		{"probe on other host", Entry{URL: "https://other.test/.git/HEAD", Probe: true}, false},
		{"relative", Entry{URL: "/docs/a", Depth: 1}, false},
		{"mailto", Entry{URL: "mailto:a@example.test", Depth: 1}, false},
	}
	for _, tt := range tests {
		if got := f.Offer(tt.entry); got != tt.want {
			t.Errorf("%s: Offer() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func docsScope() *Scope {
	s := testScope("example.test")
	s.prefixes = []string{"/docs"}
	return s
}

func TestFrontierTakeOrder(t *testing.T) {
	t.Parallel()

	f := NewFrontier(testScope("example.test"), NewHostGate(0), 5, 0)
	f.Offer(Entry{URL: "http://example.test/deep", Depth: 2})
	f.Offer(Entry{URL: "http://example.test/b", Depth: 1})
	f.Offer(Entry{URL: "http://example.test/", Depth: 0, Seed: true})
	f.Offer(Entry{URL: "http://example.test/c", Depth: 1})

	ctx := context.Background()
	want := []string{"http://example.test/", "http://example.test/b", "http://example.test/c", "http://example.test/deep"}
	for _, w := range want {
		e, err := f.Take(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if e.URL != w {
			t.Errorf("Take() = %q, want %q", e.URL, w)
		}
		f.Done(e)
	}

	if _, err := f.Take(ctx); !errors.Is(err, ErrFrontierDone) {
		t.Errorf("Take() error = %v, want ErrFrontierDone", err)
	}
	if got := f.Issued(); got != 4 {
		t.Errorf("Issued() = %d, want 4", got)
	}
}

func TestFrontierBudget(t *testing.T) {
	t.Parallel()

	f := NewFrontier(testScope("example.test"), NewHostGate(0), 5, 1)
	f.Offer(Entry{URL: "http://example.test/a"})
	f.Offer(Entry{URL: "http://example.test/b"})

	e, err := f.Take(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	f.Done(e)

	if _, err := f.Take(context.Background()); !errors.Is(err, ErrBudgetExhausted) {
		t.Errorf("Take() error = %v, want ErrBudgetExhausted", err)
	}
}

func TestFrontierSkipsBusyHost(t *testing.T) {
	t.Parallel()

	f := NewFrontier(testScope("a.test", "b.test"), NewHostGate(time.Hour), 5, 0)
	f.Offer(Entry{URL: "http://a.test/1"})
	f.Offer(Entry{URL: "http://a.test/2"})
	f.Offer(Entry{URL: "http://b.test/1"})

	first, err := f.Take(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.Take(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first.URL != "http://a.test/1" || second.URL != "http://b.test/1" {
		t.Errorf("got %q then %q, want a.test/1 then b.test/1", first.URL, second.URL)
	}
	if first.Host() != "a.test" {
		t.Errorf("Host() = %q", first.Host())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := f.Take(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Take() error = %v, want deadline exceeded while both hosts are busy", err)
	}
}

func TestFrontierTakeWaitsForInFlightWork(t *testing.T) {
	t.Parallel()

	f := NewFrontier(testScope("example.test"), NewHostGate(0), 5, 0)
	f.Offer(Entry{URL: "http://example.test/"})
	seed, err := f.Take(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	got := make(chan Entry, 1)
	go func() {
		e, err := f.Take(context.Background())
		if err == nil {
			got <- e
		}
		close(got)
	}()

	time.Sleep(20 * time.Millisecond)
	f.Offer(Entry{URL: "http://example.test/next", Depth: 1})
	f.Done(seed)

	select {
	case e, ok := <-got:
		if !ok || e.URL != "http://example.test/next" {
			t.Errorf("blocked Take returned %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Take did not wake up after Offer")
	}
}

func TestFrontierHostDelay(t *testing.T) {
	t.Parallel()

	const delay = 40 * time.Millisecond
	f := NewFrontier(testScope("example.test"), NewHostGate(delay), 5, 0)
	f.Offer(Entry{URL: "http://example.test/1"})
	f.Offer(Entry{URL: "http://example.test/2"})

	start := time.Now()
	for range 2 {
		e, err := f.Take(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		f.Done(e)
	}
	if elapsed := time.Since(start); elapsed < delay {
		t.Errorf("two takes for one host took %v, want at least %v", elapsed, delay)
	}
}

func TestFrontierClaim(t *testing.T) {
	t.Parallel()

	f := NewFrontier(testScope("example.test"), NewHostGate(0), 5, 0)
	if !f.Offer(Entry{URL: "http://example.test/queued", Seed: true}) {
		t.Fatal("Offer rejected a new URL")
	}

	claim := func(raw string) bool {
		t.Helper()
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatal(err)
		}
		return f.Claim(u)
	}

	if claim("http://example.test/queued") {
		t.Error("Claim won a URL that is already queued")
	}
	if !claim("http://example.test/final/") {
		t.Error("Claim lost an unseen URL")
	}
	if claim("HTTP://EXAMPLE.TEST:80/final#top") {
		t.Error("Claim won the same URL twice")
	}
	if f.Offer(Entry{URL: "http://example.test/final", Depth: 1}) {
		t.Error("Offer accepted a claimed URL")
	}
}

func TestFrontierClaimConcurrent(t *testing.T) {
	t.Parallel()

	f := NewFrontier(testScope("example.test"), NewHostGate(0), 5, 0)
	u, err := url.Parse("http://example.test/target")
	if err != nil {
		t.Fatal(err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.Claim(u) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("Claim won %d times, want 1", wins.Load())
	}
}

func TestHostGate(t *testing.T) {
	t.Parallel()

	g := NewHostGate(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	if ok, _ := g.TryAcquire("a.test"); !ok {
		t.Fatal("first acquire failed")
	}
	ok, wait := g.TryAcquire("a.test")
	if ok || wait != time.Minute {
		t.Errorf("second acquire = %v, %v; want false, 1m", ok, wait)
	}
	if ok, _ := g.TryAcquire("b.test"); !ok {
		t.Error("other host must not be blocked")
	}

	now = now.Add(time.Minute)
	if ok, _ := g.TryAcquire("a.test"); !ok {
		t.Error("acquire after the delay failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Wait(ctx, "a.test"); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRobotsAllowed(t *testing.T) {
	t.Parallel()

	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		fetches.Add(1)
		w.Write([]byte("User-agent: *\nDisallow: /private\n\nUser-agent: sitescan-test\nDisallow: /tools\n"))
	}))
	t.Cleanup(srv.Close)

	robots := NewRobots(srv.Client(), "sitescan-test", time.Second, nil, discardLogger)

	tests := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/public/page", true},
		{"/tools/debug", false},
		{"/private/key", true},
	}

	var wg sync.WaitGroup
	for _, tt := range tests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, _ := url.Parse(srv.URL + tt.path)
			if got := robots.Allowed(context.Background(), u); got != tt.want {
				t.Errorf("Allowed(%q) = %v, want %v", tt.path, got, tt.want)
			}
		}()
	}
	wg.Wait()

	if got := fetches.Load(); got != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", got)
	}
}

func TestRobotsStatusHandling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"missing allows everything", http.StatusNotFound, true},
		{"forbidden allows everything", http.StatusForbidden, true},
		{"server error disallows everything", http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			t.Cleanup(srv.Close)

			robots := NewRobots(srv.Client(), "sitescan-test", time.Second, nil, discardLogger)
			u, _ := url.Parse(srv.URL + "/page")
			if got := robots.Allowed(context.Background(), u); got != tt.want {
				t.Errorf("Allowed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRobotsUnreachableFailsOpen(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	robots := NewRobots(http.DefaultClient, "sitescan-test", 500*time.Millisecond, nil, discardLogger)
	u, _ := url.Parse(addr + "/page")
	if !robots.Allowed(context.Background(), u) {
		t.Error("unreachable robots.txt must allow everything")
	}
}

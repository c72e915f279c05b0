package crawler

import (
	"context"
	"sync"
	"time"
)

// HostGate enforces a minimum delay between two requests to the same host.
//
// It keeps the earliest time the next request to each host may start.
// TryAcquire never blocks, which lets the frontier skip a busy host and hand
// out work for another one; Wait blocks and is used for retries and redirects.
type HostGate struct {
	delay time.Duration
	now   func() time.Time

	mu   sync.Mutex
	next map[string]time.Time
}

// NewHostGate creates a gate with the given minimum delay per host.
func NewHostGate(delay time.Duration) *HostGate {
	return &HostGate{
		delay: delay,
		now:   time.Now,
		next:  make(map[string]time.Time),
	}
}

// TryAcquire reserves a request slot for host if one is free now.
// When the host is busy it returns false and how long until it is free.
func (g *HostGate) TryAcquire(host string) (bool, time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if next, ok := g.next[host]; ok && now.Before(next) {
		return false, next.Sub(now)
	}
	g.next[host] = now.Add(g.delay)
	return true, 0
}

// Wait blocks until a request slot for host is reserved or ctx is done.
func (g *HostGate) Wait(ctx context.Context, host string) error {
	for {
		ok, wait := g.TryAcquire(host)
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Delay returns the configured minimum delay.
func (g *HostGate) Delay() time.Duration {
	return g.delay
}

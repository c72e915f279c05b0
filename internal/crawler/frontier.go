package crawler

import (
	"container/heap"
	"context"
	"errors"
	"net/url"
	"sort"
	"sync"
	"time"
)

var (
	// ErrFrontierDone is returned by Take when nothing is queued and nothing is in flight.
	ErrFrontierDone = errors.New("frontier: crawl complete")

	// ErrBudgetExhausted is returned by Take when the page budget is used up
	// while entries are still queued.
	ErrBudgetExhausted = errors.New("frontier: page budget exhausted")
)

// Entry is one URL waiting to be fetched.
type Entry struct {
	// URL is the absolute URL to request, without fragment.
	URL string

	// From is the URL of the page the link was found on. Empty for seeds and probes.
	From string

	// Depth is the number of links between the seed and this URL.
	Depth int

	// Seed is true for the target's base URL.
	Seed bool

	// Probe is true for active probe URLs.
	Probe bool

	host string
	seq  uint64
}

// Host returns the host the entry is queued under.
func (e Entry) Host() string {
	return e.host
}

// Frontier is the deduplicated work queue of one target's crawl.
//
// Entries are handed out breadth-first: the lowest depth first, and FIFO
// within a depth for a given host. A host whose politeness gate is closed is
// skipped so that workers can serve other hosts in the meantime.
//
// All methods are safe for concurrent use.
type Frontier struct {
	scope    *Scope
	gate     *HostGate
	maxDepth int
	maxPages int

	mu       sync.Mutex
	seen     map[string]struct{}
	queues   map[string]*hostQueue
	pending  int
	inFlight int
	issued   int
	seq      uint64
	changed  chan struct{}
}

// NewFrontier creates an empty frontier. maxPages <= 0 disables the page budget.
func NewFrontier(scope *Scope, gate *HostGate, maxDepth, maxPages int) *Frontier {
	return &Frontier{
		scope:    scope,
		gate:     gate,
		maxDepth: maxDepth,
		maxPages: maxPages,
		seen:     make(map[string]struct{}),
		queues:   make(map[string]*hostQueue),
		changed:  make(chan struct{}),
	}
}

// Offer queues e if its normalized URL has not been seen, it is in scope and
// within the depth limit. It reports whether the entry was accepted.
// Offering the same URL again is a no-op.
func (f *Frontier) Offer(e Entry) bool {
	if e.Depth < 0 || e.Depth > f.maxDepth {
		return false
	}

	u, err := url.Parse(e.URL)
	if err != nil || !u.IsAbs() {
		return false
	}
	switch {
	case e.Probe:
		if !f.scope.AllowsHost(u) {
			return false
		}
	case e.Seed:
		if !f.scope.InBounds(u) {
			return false
		}
	default:
		if !f.scope.InScope(u) {
			return false
		}
	}

	key := normalize(u)
	e.URL = stripFragment(u)
	e.host = canonicalHost(u.Scheme, u.Host)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[key]; ok {
		return false
	}
	f.seen[key] = struct{}{}

	f.seq++
	e.seq = f.seq
	q, ok := f.queues[e.host]
	if !ok {
		q = &hostQueue{}
		f.queues[e.host] = q
	}
	heap.Push(q, e)
	f.pending++
	f.broadcastLocked()
	return true
}

// Claim records u as visited without queueing it. It reports whether u was
// unseen, so that of all callers claiming one URL exactly one wins.
// The fetcher claims every redirect hop before following it.
func (f *Frontier) Claim(u *url.URL) bool {
	key := normalize(u)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[key]; ok {
		return false
	}
	f.seen[key] = struct{}{}
	return true
}

// Take removes and returns the next ready entry.
//
// It blocks while entries are queued but every host is inside its politeness
// delay, or while the queue is empty but work is in flight that may offer
// more. It returns ErrFrontierDone when the crawl is complete,
// ErrBudgetExhausted when the page budget is used up, or ctx.Err().
//
// Every entry returned must be passed to Done once processed.
func (f *Frontier) Take(ctx context.Context) (Entry, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Entry{}, err
		}

		f.mu.Lock()
		if f.maxPages > 0 && f.issued >= f.maxPages {
			if f.pending > 0 {
				f.mu.Unlock()
				return Entry{}, ErrBudgetExhausted
			}
			if f.inFlight == 0 {
				f.mu.Unlock()
				return Entry{}, ErrFrontierDone
			}
		} else if f.pending == 0 && f.inFlight == 0 {
			f.mu.Unlock()
			return Entry{}, ErrFrontierDone
		}

		var wait time.Duration
		if f.pending > 0 && (f.maxPages <= 0 || f.issued < f.maxPages) {
			e, ok, w := f.nextReadyLocked()
			if ok {
				f.pending--
				f.inFlight++
				f.issued++
				f.mu.Unlock()
				return e, nil
			}
			wait = w
		}
		changed := f.changed
		f.mu.Unlock()

		var timeout <-chan time.Time
		var timer *time.Timer
		if wait > 0 {
			timer = time.NewTimer(wait)
			timeout = timer.C
		}
		select {
		case <-ctx.Done():
		case <-changed:
		case <-timeout:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// Done marks an entry returned by Take as processed.
func (f *Frontier) Done(Entry) {
	f.mu.Lock()
	f.inFlight--
	f.broadcastLocked()
	f.mu.Unlock()
}

// SeenCount returns the number of distinct normalized URLs offered or marked seen.
func (f *Frontier) SeenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

// Pending returns the number of queued entries.
func (f *Frontier) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

// Issued returns the number of entries handed out by Take.
func (f *Frontier) Issued() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issued
}

// nextReadyLocked pops the best entry among hosts whose gate is open.
// Hosts are tried in (depth, sequence) order of their head entry. When no
// host is ready it returns the shortest wait until one might be.
func (f *Frontier) nextReadyLocked() (Entry, bool, time.Duration) {
	hosts := make([]*hostQueue, 0, len(f.queues))
	for _, q := range f.queues {
		if q.Len() > 0 {
			hosts = append(hosts, q)
		}
	}
	sort.Slice(hosts, func(i, j int) bool {
		return (*hosts[i])[0].before((*hosts[j])[0])
	})

	var wait time.Duration
	for _, q := range hosts {
		head := (*q)[0]
		ok, w := f.gate.TryAcquire(head.host)
		if ok {
			return heap.Pop(q).(Entry), true, 0
		}
		if wait == 0 || w < wait {
			wait = w
		}
	}
	return Entry{}, false, wait
}

// broadcastLocked wakes every goroutine blocked in Take.
func (f *Frontier) broadcastLocked() {
	close(f.changed)
	f.changed = make(chan struct{})
}

func (e Entry) before(o Entry) bool {
	if e.Depth != o.Depth {
		return e.Depth < o.Depth
	}
	return e.seq < o.seq
}

// hostQueue is a min-heap of one host's entries ordered by (depth, sequence).
type hostQueue []Entry

func (q hostQueue) Len() int           { return len(q) }
func (q hostQueue) Less(i, j int) bool { return q[i].before(q[j]) }
func (q hostQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *hostQueue) Push(x any)        { *q = append(*q, x.(Entry)) }
func (q *hostQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

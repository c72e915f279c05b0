package report

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/sitescan/internal/model"
)

// Aggregator collects findings and crawl summaries from concurrent crawls
// and assembles them into a Report.
//
// All methods are safe for concurrent use.
type Aggregator struct {
	runID string
	now   func() time.Time

	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
	targets map[string]*targetState
}

type targetState struct {
	baseURL  string
	findings []model.Finding
	summary  model.CrawlSummary
	recorded bool
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithRunID sets the run ID instead of generating one.
func WithRunID(id string) AggregatorOption {
	return func(a *Aggregator) {
		a.runID = id
	}
}

// WithClock sets the clock used for the report generation time.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		a.now = now
	}
}

// NewAggregator creates an empty aggregator with a random run ID.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		runID:   uuid.NewString(),
		now:     time.Now,
		seen:    make(map[string]struct{}),
		targets: make(map[string]*targetState),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RunID returns the ID of the run.
func (a *Aggregator) RunID() string {
	return a.runID
}

// Register reserves a slot for target so that the report lists targets in
// registration order, whatever order their crawls finish in.
func (a *Aggregator) Register(target, baseURL string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.targetLocked(target).baseURL = baseURL
}

// Add stores f unless an identical finding was already added.
// It reports whether f was new.
func (a *Aggregator) Add(f model.Finding) bool {
	key := f.Key()

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, dup := a.seen[key]; dup {
		return false
	}
	a.seen[key] = struct{}{}
	t := a.targetLocked(f.Target)
	t.findings = append(t.findings, f)
	return true
}

// Record stores the crawl summary of target.
func (a *Aggregator) Record(target, baseURL string, summary model.CrawlSummary) {
	a.mu.Lock()
	defer a.mu.Unlock()

	t := a.targetLocked(target)
	t.baseURL = baseURL
	if len(summary.ErrorsByKind) == 0 {
		summary.ErrorsByKind = nil
	}
	t.summary = summary
	t.recorded = true
}

// Report builds the report of everything collected so far. Targets that
// neither recorded a summary nor produced a finding are left out.
// Findings are ordered most severe first, then by URL and detector.
func (a *Aggregator) Report() *model.Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	r := &model.Report{
		SchemaVersion: model.SchemaVersion,
		RunID:         a.runID,
		GeneratedAt:   a.now().UTC(),
		Targets:       make([]model.TargetReport, 0, len(a.order)),
	}
	for _, name := range a.order {
		t := a.targets[name]
		if !t.recorded && len(t.findings) == 0 {
			continue
		}
		r.Targets = append(r.Targets, t.report(name))
	}
	return r
}

// TargetReport returns the report section of one target, or nil if nothing
// was recorded for it yet.
func (a *Aggregator) TargetReport(target string) *model.TargetReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	t, ok := a.targets[target]
	if !ok || (!t.recorded && len(t.findings) == 0) {
		return nil
	}
	r := t.report(target)
	return &r
}

func (t *targetState) report(name string) model.TargetReport {
	findings := slices.Clone(t.findings)
	if findings == nil {
		findings = []model.Finding{}
	}
	slices.SortStableFunc(findings, compareFindings)
	return model.TargetReport{
		Target:   name,
		BaseURL:  t.baseURL,
		Findings: findings,
		Summary:  t.summary,
	}
}

func (a *Aggregator) targetLocked(name string) *targetState {
	t, ok := a.targets[name]
	if !ok {
		t = &targetState{}
		a.targets[name] = t
		a.order = append(a.order, name)
	}
	return t
}

func compareFindings(x, y model.Finding) int {
	return cmp.Or(
		cmp.Compare(y.Severity, x.Severity),
		cmp.Compare(x.URL, y.URL),
		cmp.Compare(x.Detector, y.Detector),
		cmp.Compare(x.Evidence, y.Evidence),
	)
}

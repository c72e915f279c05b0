package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/sitescan/internal/config"
	"github.com/nao1215/sitescan/internal/model"
)

// ErrNoReport is returned by HistoryStep when the collect step did not run.
var ErrNoReport = errors.New("no report to save")

// Crawler crawls one target. *crawler.Scheduler implements it.
type Crawler interface {
	Run(ctx context.Context, target config.Target) (model.CrawlSummary, error)
}

// Collector gathers summaries into the run's report. *report.Aggregator implements it.
type Collector interface {
	Record(target, baseURL string, summary model.CrawlSummary)
	TargetReport(target string) *model.TargetReport
	RunID() string
}

// HistoryStore persists report sections. *database.CrawlDB implements it.
type HistoryStore interface {
	SaveTargetReport(ctx context.Context, runID string, scannedAt time.Time, t *model.TargetReport) error
}

// CrawlStep crawls the target and stores the summary in the run.
type CrawlStep struct {
	crawler Crawler
}

// NewCrawlStep creates a crawl step.
func NewCrawlStep(c Crawler) *CrawlStep {
	return &CrawlStep{crawler: c}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do runs the crawl.
func (s *CrawlStep) Do(ctx context.Context, run *TargetRun) error {
	summary, err := s.crawler.Run(ctx, run.Target)
	if err != nil {
		return err
	}
	run.Summary = summary
	return nil
}

// CollectStep records the crawl summary with the collector and takes back
// the target's finished report section.
type CollectStep struct {
	collector Collector
}

// NewCollectStep creates a collect step.
func NewCollectStep(c Collector) *CollectStep {
	return &CollectStep{collector: c}
}

// Name returns the step name.
func (s *CollectStep) Name() string {
	return "collect"
}

// Do records the summary.
func (s *CollectStep) Do(_ context.Context, run *TargetRun) error {
	s.collector.Record(run.Target.Name, run.Target.BaseURL, run.Summary)
	run.Report = s.collector.TargetReport(run.Target.Name)
	return nil
}

// HistoryStep saves the target's report section to the history store.
// The save goes through even when the scan was interrupted.
type HistoryStep struct {
	store  HistoryStore
	runID  string
	now    func() time.Time
	logger *slog.Logger
}

// HistoryStepOption configures a HistoryStep.
type HistoryStepOption func(*HistoryStep)

// WithHistoryLogger sets the logger.
func WithHistoryLogger(logger *slog.Logger) HistoryStepOption {
	return func(s *HistoryStep) {
		s.logger = logger
	}
}

// WithHistoryClock sets the clock used for the scan time.
func WithHistoryClock(now func() time.Time) HistoryStepOption {
	return func(s *HistoryStep) {
		s.now = now
	}
}

// NewHistoryStep creates a step that saves reports of run runID to store.
func NewHistoryStep(store HistoryStore, runID string, opts ...HistoryStepOption) *HistoryStep {
	s := &HistoryStep{
		store:  store,
		runID:  runID,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *HistoryStep) Name() string {
	return "history"
}

// Do saves the report section.
func (s *HistoryStep) Do(ctx context.Context, run *TargetRun) error {
	if run.Report == nil {
		return fmt.Errorf("%w for %s", ErrNoReport, run.Target.Name)
	}
	if err := s.store.SaveTargetReport(context.WithoutCancel(ctx), s.runID, s.now(), run.Report); err != nil {
		return fmt.Errorf("save history of %s: %w", run.Target.Name, err)
	}
	s.logger.Debug("saved scan history", "target", run.Target.Name, "run_id", s.runID)
	return nil
}

// DefaultPipeline builds the pipeline of one target: crawl, collect and,
// when store is not nil, history. A target whose crawl cannot be set up
// stops after the crawl step and is left out of the report.
func DefaultPipeline(c Crawler, collector Collector, store HistoryStore, opts ...Option) *Pipeline {
	p := New(opts...)
	p.AddSteps(NewCrawlStep(c), NewCollectStep(collector))
	if store != nil {
		p.AddStep(NewHistoryStep(store, collector.RunID(), WithHistoryLogger(p.logger)))
	}
	return p
}

package model

import (
	"fmt"
	"time"
)

// SchemaVersion tags every serialized report so that readers can detect
// incompatible changes to the layout.
const SchemaVersion = "sitescan/v1"

// TerminationReason records why a target's crawl stopped.
type TerminationReason string

const (
	// TerminationComplete means the frontier drained with no work left.
	TerminationComplete TerminationReason = "complete"

	// TerminationBudgetExhausted means the page or wall-clock budget was hit first.
	TerminationBudgetExhausted TerminationReason = "budget-exhausted"

	// TerminationCancelled means the crawl was aborted from outside, e.g. by SIGINT.
	TerminationCancelled TerminationReason = "cancelled"
)

// Valid reports whether r is one of the known termination reasons.
func (r TerminationReason) Valid() bool {
	switch r {
	case TerminationComplete, TerminationBudgetExhausted, TerminationCancelled:
		return true
	}
	return false
}

// UnmarshalText rejects unknown termination reasons when a report is read back.
func (r *TerminationReason) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*r = ""
		return nil
	}
	reason := TerminationReason(text)
	if !reason.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTermination, string(text))
	}
	*r = reason
	return nil
}

// CrawlSummary holds the statistics of one target's crawl.
type CrawlSummary struct {
	// PagesFetched is the number of fetches issued, including failed ones and probes.
	PagesFetched int `json:"pages_fetched" yaml:"pages_fetched"`

	// Errors is the number of fetches that ended with a FetchError.
	Errors int `json:"errors" yaml:"errors"`

	// ErrorsByKind breaks Errors down by FetchErrorKind.
	ErrorsByKind map[string]int `json:"errors_by_kind,omitempty" yaml:"errors_by_kind,omitempty"`

	// DetectorFailures counts detector invocations that returned an error or panicked.
	DetectorFailures int `json:"detector_failures" yaml:"detector_failures"`

	// MaxDepthReached is the deepest discovery depth that was fetched.
	MaxDepthReached int `json:"max_depth_reached" yaml:"max_depth_reached"`

	// StartedAt is when the crawl started.
	StartedAt time.Time `json:"started_at" yaml:"started_at"`

	// Duration is the wall time of the crawl.
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Termination is why the crawl stopped.
	Termination TerminationReason `json:"termination" yaml:"termination"`
}

// TargetReport is the per-target section of a report.
type TargetReport struct {
	// Target is the configured name of the target; the base URL unless a name was given.
	Target string `json:"target" yaml:"target"`

	// BaseURL is the seed URL the crawl started from.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Findings lists the deduplicated findings, most severe first.
	Findings []Finding `json:"findings" yaml:"findings"`

	// Summary holds the crawl statistics.
	Summary CrawlSummary `json:"summary" yaml:"summary"`
}

// CountBySeverity returns how many findings have each severity.
func (t *TargetReport) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int, 5)
	for _, f := range t.Findings {
		counts[f.Severity]++
	}
	return counts
}

// HasCriticalFindings returns true if any finding is critical.
func (t *TargetReport) HasCriticalFindings() bool {
	for _, f := range t.Findings {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// Report is the complete result of one sitescan run.
type Report struct {
	// SchemaVersion is always SchemaVersion when written by this version.
	SchemaVersion string `json:"schema_version" yaml:"schema_version"`

	// RunID uniquely identifies the run.
	RunID string `json:"run_id" yaml:"run_id"`

	// GeneratedAt is when the report was assembled.
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`

	// Targets holds one entry per crawled target, in configuration order.
	Targets []TargetReport `json:"targets" yaml:"targets"`
}

// TotalFindings returns the number of findings across all targets.
func (r *Report) TotalFindings() int {
	total := 0
	for i := range r.Targets {
		total += len(r.Targets[i].Findings)
	}
	return total
}

// Target returns the report for the named target, or nil if it is absent.
func (r *Report) Target(name string) *TargetReport {
	for i := range r.Targets {
		if r.Targets[i].Target == name {
			return &r.Targets[i]
		}
	}
	return nil
}

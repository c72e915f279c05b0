package report

import (
	"slices"
	"time"

	"github.com/nao1215/sitescan/internal/model"
)

// Risk directions of a Comparison.
const (
	DirectionWorsened  = "worsened"
	DirectionImproved  = "improved"
	DirectionUnchanged = "unchanged"
)

// severityWeights scores a report so that one critical finding outweighs
// any realistic number of informational ones.
var severityWeights = map[model.Severity]int{
	model.SeverityCritical: 100,
	model.SeverityHigh:     50,
	model.SeverityMedium:   10,
	model.SeverityLow:      5,
	model.SeverityInfo:     1,
}

// Comparison is the difference between two stored reports of one target.
type Comparison struct {
	// Target is the target name.
	Target string `json:"target"`

	// BaseURL is the seed URL of the target.
	BaseURL string `json:"base_url"`

	// Previous describes the older report.
	Previous ScanStats `json:"previous"`

	// Current describes the newer report.
	Current ScanStats `json:"current"`

	// NewFindings are present in Current only.
	NewFindings []model.Finding `json:"new_findings,omitempty"`

	// ResolvedFindings are present in Previous only.
	ResolvedFindings []model.Finding `json:"resolved_findings,omitempty"`

	// PersistingFindings are present in both.
	PersistingFindings []model.Finding `json:"persisting_findings,omitempty"`

	// Direction is DirectionWorsened, DirectionImproved or DirectionUnchanged.
	Direction string `json:"direction"`
}

// ScanStats holds the counts of one side of a Comparison.
type ScanStats struct {
	ScannedAt     time.Time               `json:"scanned_at"`
	Termination   model.TerminationReason `json:"termination"`
	PagesFetched  int                     `json:"pages_fetched"`
	TotalFindings int                     `json:"total_findings"`
	BySeverity    map[string]int          `json:"by_severity"`
}

// Delta returns the change in the number of findings of severity s.
func (c *Comparison) Delta(s model.Severity) int {
	name := s.String()
	return c.Current.BySeverity[name] - c.Previous.BySeverity[name]
}

// Compare computes what changed between prev and cur, two reports of the
// same target. Findings are matched by Finding.Key. Each result list is
// sorted like a report: severity descending, then URL.
func Compare(prev, cur *model.TargetReport, prevAt, curAt time.Time) *Comparison {
	c := &Comparison{
		Target:   cur.Target,
		BaseURL:  cur.BaseURL,
		Previous: statsOf(prev, prevAt),
		Current:  statsOf(cur, curAt),
	}

	before := make(map[string]model.Finding, len(prev.Findings))
	for _, f := range prev.Findings {
		before[f.Key()] = f
	}
	after := make(map[string]struct{}, len(cur.Findings))
	for _, f := range cur.Findings {
		after[f.Key()] = struct{}{}
		if _, ok := before[f.Key()]; ok {
			c.PersistingFindings = append(c.PersistingFindings, f)
		} else {
			c.NewFindings = append(c.NewFindings, f)
		}
	}
	for key, f := range before {
		if _, ok := after[key]; !ok {
			c.ResolvedFindings = append(c.ResolvedFindings, f)
		}
	}

	slices.SortFunc(c.NewFindings, compareFindings)
	slices.SortFunc(c.ResolvedFindings, compareFindings)
	slices.SortFunc(c.PersistingFindings, compareFindings)

	prevScore, curScore := riskScore(prev), riskScore(cur)
	switch {
	case curScore > prevScore:
		c.Direction = DirectionWorsened
	case curScore < prevScore:
		c.Direction = DirectionImproved
	default:
		c.Direction = DirectionUnchanged
	}
	return c
}

func statsOf(t *model.TargetReport, at time.Time) ScanStats {
	counts := t.CountBySeverity()
	bySeverity := make(map[string]int, len(counts))
	for s, n := range counts {
		bySeverity[s.String()] = n
	}
	return ScanStats{
		ScannedAt:     at,
		Termination:   t.Summary.Termination,
		PagesFetched:  t.Summary.PagesFetched,
		TotalFindings: len(t.Findings),
		BySeverity:    bySeverity,
	}
}

func riskScore(t *model.TargetReport) int {
	score := 0
	for s, n := range t.CountBySeverity() {
		score += severityWeights[s] * n
	}
	return score
}

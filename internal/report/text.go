package report

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/sitescan/internal/model"
)

const ruleWidth = 70

// TextWriter outputs human-readable text reports for terminal display.
type TextWriter struct {
	baseWriter

	// showEmpty controls whether severities with no findings are listed.
	showEmpty bool

	// verbose adds descriptions and recommendations to each finding.
	verbose bool

	// summaryOnly leaves out the finding details.
	summaryOnly bool

	upper cases.Caser
	title cases.Caser
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) TextWriterOption {
	return func(w *TextWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) TextWriterOption {
	return func(w *TextWriter) {
		w.verbose = verbose
	}
}

// WithSummaryOnly limits the output to the per-target statistics and severity counts.
func WithSummaryOnly(summaryOnly bool) TextWriterOption {
	return func(w *TextWriter) {
		w.summaryOnly = summaryOnly
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{
		baseWriter: newBaseWriter(output),
		upper:      cases.Upper(language.English),
		title:      cases.Title(language.English),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *TextWriter) Write(report *model.Report) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	for i := range report.Targets {
		t := &report.Targets[i]
		w.writeTarget(&sb, t)
		w.writeSummary(&sb, t)
		if !w.summaryOnly {
			w.writeFindings(&sb, t)
		}
	}
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *TextWriter) heading(sb *strings.Builder, char, text string) {
	sb.WriteString(strings.Repeat(char, ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(w.upper.String(text))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat(char, ruleWidth))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with run information.
func (w *TextWriter) writeHeader(sb *strings.Builder, report *model.Report) {
	sb.WriteString("\n")
	w.heading(sb, "=", "sitescan report")

	fmt.Fprintf(sb, "Run ID:         %s\n", report.RunID)
	fmt.Fprintf(sb, "Generated:      %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Targets:        %d\n", len(report.Targets))
	fmt.Fprintf(sb, "Findings:       %d\n", report.TotalFindings())
	sb.WriteString("\n")
}

// writeTarget writes the statistics of one target.
func (w *TextWriter) writeTarget(sb *strings.Builder, t *model.TargetReport) {
	w.heading(sb, "-", "target: "+t.Target)

	s := t.Summary
	fmt.Fprintf(sb, "Base URL:       %s\n", t.BaseURL)
	fmt.Fprintf(sb, "Status:         %s\n", w.title.String(strings.ReplaceAll(string(s.Termination), "-", " ")))
	fmt.Fprintf(sb, "Pages Fetched:  %d\n", s.PagesFetched)
	fmt.Fprintf(sb, "Fetch Errors:   %d\n", s.Errors)
	for _, kind := range sortedKeys(s.ErrorsByKind) {
		fmt.Fprintf(sb, "  %-22s %d\n", kind+":", s.ErrorsByKind[kind])
	}
	if s.DetectorFailures > 0 {
		fmt.Fprintf(sb, "Detector Failures: %d\n", s.DetectorFailures)
	}
	fmt.Fprintf(sb, "Max Depth:      %d\n", s.MaxDepthReached)
	fmt.Fprintf(sb, "Duration:       %s\n", s.Duration.Round(time.Millisecond))
	sb.WriteString("\n")
}

// writeSummary writes the severity counts of one target.
func (w *TextWriter) writeSummary(sb *strings.Builder, t *model.TargetReport) {
	counts := t.CountBySeverity()
	for _, s := range severityOrder {
		fmt.Fprintf(sb, "  %-9s %d\n", s.String()+":", counts[s])
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  %-9s %d findings\n", "TOTAL:", len(t.Findings))
	sb.WriteString("\n")
}

// writeFindings writes the findings of one target grouped by severity.
func (w *TextWriter) writeFindings(sb *strings.Builder, t *model.TargetReport) {
	if len(t.Findings) == 0 && !w.showEmpty {
		return
	}

	for _, severity := range severityOrder {
		findings := findingsBySeverity(t, severity)
		if len(findings) == 0 && !w.showEmpty {
			continue
		}
		w.writeFindingsForSeverity(sb, severity, findings)
	}
}

// writeFindingsForSeverity writes findings of a specific severity level.
func (w *TextWriter) writeFindingsForSeverity(sb *strings.Builder, severity model.Severity, findings []model.Finding) {
	fmt.Fprintf(sb, "[%s] %s\n", severityIndicator(severity), severity.String())

	if len(findings) == 0 {
		sb.WriteString("  No findings\n\n")
		return
	}

	for _, f := range findings {
		fmt.Fprintf(sb, "  * %s\n", f.Title)
		fmt.Fprintf(sb, "    URL: %s\n", f.URL)
		fmt.Fprintf(sb, "    Detector: %s (%s)\n", f.Detector, f.Category)
		if f.Evidence != "" {
			fmt.Fprintf(sb, "    Evidence: %s\n", f.Evidence)
		}
		if w.verbose {
			if f.Description != "" {
				fmt.Fprintf(sb, "    Description: %s\n", f.Description)
			}
			if rec := model.GetFindingInfo(f.Type).Recommendation; rec != "" {
				fmt.Fprintf(sb, "    Recommendation: %s\n", rec)
			}
		}
	}
	sb.WriteString("\n")
}

// severityIndicator returns a visual indicator for the severity level.
func severityIndicator(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "!!!"
	case model.SeverityHigh:
		return "!!"
	case model.SeverityMedium:
		return "!"
	case model.SeverityLow:
		return "-"
	case model.SeverityInfo:
		return "i"
	default:
		return "?"
	}
}

// writeFooter writes the report footer.
func (w *TextWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by sitescan\n")
	sb.WriteString("https://github.com/nao1215/sitescan\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

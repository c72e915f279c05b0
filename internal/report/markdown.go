package report

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/net/publicsuffix"

	"github.com/nao1215/sitescan/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	for i := range report.Targets {
		w.writeTarget(md, &report.Targets[i])
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.Report) {
	md.H1("sitescan Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + report.RunID + "`"},
			{"Generated", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Targets", strconv.Itoa(len(report.Targets))},
			{"Findings", strconv.Itoa(report.TotalFindings())},
		},
	})
	md.PlainText("")
}

// writeTarget writes the section of one target.
func (w *MarkdownWriter) writeTarget(md *markdown.Markdown, t *model.TargetReport) {
	md.H2(t.Target)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Base URL", "`" + t.BaseURL + "`"},
			{"Status", statusText(t.Summary.Termination)},
			{"Pages Fetched", strconv.Itoa(t.Summary.PagesFetched)},
			{"Fetch Errors", strconv.Itoa(t.Summary.Errors)},
			{"Detector Failures", strconv.Itoa(t.Summary.DetectorFailures)},
			{"Max Depth Reached", strconv.Itoa(t.Summary.MaxDepthReached)},
			{"Duration", t.Summary.Duration.Round(time.Millisecond).String()},
		},
	})
	md.PlainText("")

	w.writeSummary(md, t)
	w.writeSites(md, t)
	w.writeFindings(md, t)
}

// statusText returns the status text for a termination reason.
func statusText(reason model.TerminationReason) string {
	switch reason {
	case model.TerminationBudgetExhausted:
		return "⚠️ Budget exhausted (partial results)"
	case model.TerminationCancelled:
		return "❌ Cancelled (partial results)"
	default:
		return "✅ Complete"
	}
}

// writeSummary writes the severity summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, t *model.TargetReport) {
	counts := t.CountBySeverity()

	md.PlainText("### Severity Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows: [][]string{
			{"🔴 Critical", strconv.Itoa(counts[model.SeverityCritical])},
			{"🟠 High", strconv.Itoa(counts[model.SeverityHigh])},
			{"🟡 Medium", strconv.Itoa(counts[model.SeverityMedium])},
			{"🔵 Low", strconv.Itoa(counts[model.SeverityLow])},
			{"⚪ Info", strconv.Itoa(counts[model.SeverityInfo])},
			{"**Total**", "**" + strconv.Itoa(len(t.Findings)) + "**"},
		},
	})
	md.PlainText("")

	if len(t.Findings) > 0 {
		w.writePieChart(md, counts)
	}
	w.writeAlert(md, counts, len(t.Findings))
}

// writePieChart writes a mermaid pie chart for severity distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, counts map[model.Severity]int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Finding Severity Distribution"),
		piechart.WithShowData(true),
	)

	labels := map[model.Severity]string{
		model.SeverityCritical: "Critical",
		model.SeverityHigh:     "High",
		model.SeverityMedium:   "Medium",
		model.SeverityLow:      "Low",
		model.SeverityInfo:     "Info",
	}
	for _, s := range severityOrder {
		if counts[s] > 0 {
			chart.LabelAndIntValue(labels[s], uint64(counts[s]))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on severity counts.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, counts map[model.Severity]int, total int) {
	switch {
	case counts[model.SeverityCritical] > 0:
		md.Cautionf(
			"Critical exposures detected! %d critical finding(s) require immediate attention.",
			counts[model.SeverityCritical],
		)
	case counts[model.SeverityHigh] > 0:
		md.Warningf(
			"High severity exposures detected. %d high severity finding(s) should be addressed.",
			counts[model.SeverityHigh],
		)
	case counts[model.SeverityMedium] > 0:
		md.Importantf(
			"Medium severity issues found. %d finding(s) leak information about the site.",
			counts[model.SeverityMedium],
		)
	case total > 0:
		md.Note("Only low severity and informational findings detected.")
	default:
		md.Tip("No security exposures detected.")
	}
	md.PlainText("")
}

// writeSites writes finding counts per registrable domain when findings
// span more than one site.
func (w *MarkdownWriter) writeSites(md *markdown.Markdown, t *model.TargetReport) {
	bySite := make(map[string]int)
	for _, f := range t.Findings {
		bySite[siteOf(f.URL)]++
	}
	if len(bySite) < 2 {
		return
	}

	sites := slices.SortedFunc(maps.Keys(bySite), func(a, b string) int {
		return cmp.Or(cmp.Compare(bySite[b], bySite[a]), cmp.Compare(a, b))
	})
	rows := make([][]string, 0, len(sites))
	for _, s := range sites {
		rows = append(rows, []string{"`" + s + "`", strconv.Itoa(bySite[s])})
	}

	md.PlainText("### Findings by Site")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Site", "Findings"},
		Rows:   rows,
	})
	md.PlainText("")
}

// siteOf returns the registrable domain of rawURL, or its host when the
// domain cannot be determined (IP addresses, single-label hosts).
func siteOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(u.Hostname())
	if err != nil {
		return u.Hostname()
	}
	return site
}

// writeFindings writes all findings grouped by severity.
func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, t *model.TargetReport) {
	md.PlainText("### Findings")
	md.PlainText("")

	if len(t.Findings) == 0 {
		md.PlainText("No security findings detected.")
		md.PlainText("")
		return
	}

	headers := map[model.Severity]string{
		model.SeverityCritical: "#### 🔴 Critical",
		model.SeverityHigh:     "#### 🟠 High",
		model.SeverityMedium:   "#### 🟡 Medium",
		model.SeverityLow:      "#### 🔵 Low",
		model.SeverityInfo:     "#### ⚪ Info",
	}
	for _, s := range severityOrder {
		findings := findingsBySeverity(t, s)
		if len(findings) == 0 {
			continue
		}
		md.PlainText(headers[s])
		md.PlainText("")
		w.writeFindingsTable(md, findings)
	}
}

// writeFindingsTable writes a table of findings with details.
func (w *MarkdownWriter) writeFindingsTable(md *markdown.Markdown, findings []model.Finding) {
	rows := make([][]string, len(findings))
	for i, f := range findings {
		evidence := f.Evidence
		if evidence == "" {
			evidence = "-"
		}
		rows[i] = []string{
			f.Title,
			truncateString(f.URL, 60),
			f.Detector,
			"`" + truncateString(evidence, 60) + "`",
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Title", "URL", "Detector", "Evidence"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, f := range findings {
		detail := f.Description
		if rec := model.GetFindingInfo(f.Type).Recommendation; rec != "" {
			detail = fmt.Sprintf("%s\n\nRecommendation: %s", detail, rec)
		}
		if detail != "" {
			md.Details(f.Title, detail)
		}
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitescan](https://github.com/nao1215/sitescan)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

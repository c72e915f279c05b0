package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitescan/internal/config"
	"github.com/nao1215/sitescan/internal/database"
	"github.com/nao1215/sitescan/internal/model"
	"github.com/nao1215/sitescan/internal/report"
)

const noFindingsMessage = "No findings"

// severities lists severities from the most to the least severe.
var severities = []model.Severity{
	model.SeverityCritical,
	model.SeverityHigh,
	model.SeverityMedium,
	model.SeverityLow,
	model.SeverityInfo,
}

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [target]",
		Short: "Compare the two latest scans of a site",
		Long: `Compare shows what changed between the two most recent stored scans of
a site. The site is given by its name or its base URL.

It lists:
- New findings that appeared since the previous scan
- Resolved findings that are no longer present
- Persisting findings present in both scans
- The change in the number of findings per severity

Scans are stored by 'sitescan scan' unless --no-db is given.

Examples:
  # Compare the latest two scans of a site
  sitescan compare https://www.example.com/

  # List the stored scans of a site
  sitescan compare --list shop

  # List all sites in the database
  sitescan compare --list-targets

  # Output the comparison as JSON
  sitescan compare --format json shop`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List the stored scans of the target")
	cmd.Flags().BoolP("list-targets", "L", false,
		"List every target in the database")
	cmd.Flags().StringP("format", "f", config.FormatText,
		"Output format: text, json or markdown")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the scan history database")

	return cmd
}

func runCompareCmd(cmd *cobra.Command, args []string) error {
	listTargets, err := cmd.Flags().GetBool("list-targets")
	if err != nil {
		return err
	}
	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	var target string
	if !listTargets {
		if len(args) == 0 {
			return errors.New("target is required (use --list-targets to see stored targets)")
		}
		target = args[0]
	}
	switch format {
	case config.FormatText, config.FormatJSON, config.FormatMarkdown:
	default:
		return fmt.Errorf("%w: %q", config.ErrInvalidFormat, format)
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case listTargets:
		return listStoredTargets(ctx, db, out)
	case listHistory:
		return listScanHistory(ctx, db, target, out)
	}

	comparison, err := compareLatest(ctx, db, target)
	if err != nil {
		return err
	}

	switch format {
	case config.FormatJSON:
		return outputComparisonJSON(out, comparison)
	case config.FormatMarkdown:
		return outputComparisonMarkdown(out, comparison)
	default:
		outputComparisonText(out, comparison)
		return nil
	}
}

// listStoredTargets lists every target with a stored report.
func listStoredTargets(ctx context.Context, db *database.CrawlDB, out io.Writer) error {
	targets, err := db.ListTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}

	if len(targets) == 0 {
		fmt.Fprintln(out, "No scanned targets found in the database.")
		fmt.Fprintln(out, "\nUse 'sitescan scan <config-file>' to scan your sites.")
		return nil
	}

	fmt.Fprintf(out, "Scanned targets (%d):\n\n", len(targets))
	for _, t := range targets {
		fmt.Fprintf(out, "  • %s\n", t)
	}
	fmt.Fprintln(out, "\nUse 'sitescan compare --list <target>' to see the scan history of a target.")
	return nil
}

// listScanHistory lists the stored reports of target, newest first.
func listScanHistory(ctx context.Context, db *database.CrawlDB, target string, out io.Writer) error {
	records, err := db.GetTargetHistory(ctx, target, 0)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintf(out, "No scan history found for %s\n", target)
		return nil
	}

	fmt.Fprintf(out, "Scan history for %s (%d scans):\n\n", target, len(records))
	fmt.Fprintf(out, "  %-6s  %-20s  %-17s  %s\n", "ID", "Date", "Status", "Risk Summary")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 70))
	for _, rec := range records {
		fmt.Fprintf(out, "  %-6d  %-20s  %-17s  %s\n",
			rec.ID,
			rec.ScannedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Report.Summary.Termination,
			formatRiskSummary(rec.RiskSummary),
		)
	}
	return nil
}

// compareLatest compares the two most recent reports of target.
func compareLatest(ctx context.Context, db *database.CrawlDB, target string) (*report.Comparison, error) {
	records, err := db.GetTargetHistory(ctx, target, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no scan history found for %s", target)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("at least 2 scans are required for comparison (found %d)", len(records))
	}

	current, previous := records[0], records[1]
	return report.Compare(previous.Report, current.Report, previous.ScannedAt, current.ScannedAt), nil
}

// formatRiskSummary formats stored severity counts as "C:1 H:2".
func formatRiskSummary(summary map[string]int) string {
	var parts []string
	for _, s := range severities {
		name := strings.ToLower(s.String())
		if v := summary[name]; v > 0 {
			parts = append(parts, fmt.Sprintf("%c:%d", s.String()[0], v))
		}
	}
	if len(parts) == 0 {
		return noFindingsMessage
	}
	return strings.Join(parts, " ")
}

func outputComparisonJSON(out io.Writer, c *report.Comparison) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

func outputComparisonText(out io.Writer, c *report.Comparison) {
	fmt.Fprintf(out, "Scan Comparison: %s (%s)\n", c.Target, c.BaseURL)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nRisk Status: %s\n", formatDirection(c.Direction))
	fmt.Fprintf(out, "\nPrevious scan: %s\n", c.Previous.ScannedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Current scan:  %s\n", c.Current.ScannedAt.Local().Format("2006-01-02 15:04:05"))

	fmt.Fprintln(out, "\nFindings Summary:")
	fmt.Fprintf(out, "  %-10s  %-10s  %-10s  %-10s\n", "Severity", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 45))
	for _, s := range severities {
		fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", s,
			c.Previous.BySeverity[s.String()], c.Current.BySeverity[s.String()], formatDelta(c.Delta(s)))
	}
	fmt.Fprintln(out, "  "+strings.Repeat("-", 45))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "TOTAL",
		c.Previous.TotalFindings, c.Current.TotalFindings,
		formatDelta(c.Current.TotalFindings-c.Previous.TotalFindings))

	if len(c.NewFindings) > 0 {
		fmt.Fprintf(out, "\nNew Findings (%d):\n", len(c.NewFindings))
		for _, f := range c.NewFindings {
			fmt.Fprintf(out, "  [+] [%s] %s\n", f.Severity, f.Title)
			fmt.Fprintf(out, "      URL: %s\n", f.URL)
		}
	}
	if len(c.ResolvedFindings) > 0 {
		fmt.Fprintf(out, "\nResolved Findings (%d):\n", len(c.ResolvedFindings))
		for _, f := range c.ResolvedFindings {
			fmt.Fprintf(out, "  [-] [%s] %s\n", f.Severity, f.Title)
			fmt.Fprintf(out, "      URL: %s\n", f.URL)
		}
	}
	if len(c.PersistingFindings) > 0 {
		fmt.Fprintf(out, "\nPersisting: %d findings\n", len(c.PersistingFindings))
	}
}

func outputComparisonMarkdown(out io.Writer, c *report.Comparison) error {
	md := markdown.NewMarkdown(out)

	md.H1("Scan Comparison: " + c.Target)
	md.PlainText("")
	md.PlainText("**Risk Status:** " + formatDirection(c.Direction))
	md.PlainText("")

	rows := [][]string{{
		"Date",
		c.Previous.ScannedAt.Local().Format("2006-01-02 15:04"),
		c.Current.ScannedAt.Local().Format("2006-01-02 15:04"),
		"-",
	}}
	for _, s := range severities {
		rows = append(rows, []string{
			s.String(),
			strconv.Itoa(c.Previous.BySeverity[s.String()]),
			strconv.Itoa(c.Current.BySeverity[s.String()]),
			formatDelta(c.Delta(s)),
		})
	}
	rows = append(rows, []string{
		"**Total**",
		"**" + strconv.Itoa(c.Previous.TotalFindings) + "**",
		"**" + strconv.Itoa(c.Current.TotalFindings) + "**",
		"**" + formatDelta(c.Current.TotalFindings-c.Previous.TotalFindings) + "**",
	})
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(c.NewFindings) > 0 {
		md.H2(fmt.Sprintf("New Findings (%d)", len(c.NewFindings)))
		md.PlainText("")
		items := make([]string, 0, len(c.NewFindings))
		for _, f := range c.NewFindings {
			items = append(items, fmt.Sprintf("**[%s]** %s: `%s`", f.Severity, f.Title, f.URL))
		}
		md.BulletList(items...)
		md.PlainText("")
	}
	if len(c.ResolvedFindings) > 0 {
		md.H2(fmt.Sprintf("Resolved Findings (%d)", len(c.ResolvedFindings)))
		md.PlainText("")
		items := make([]string, 0, len(c.ResolvedFindings))
		for _, f := range c.ResolvedFindings {
			items = append(items, fmt.Sprintf("~~**[%s]** %s: `%s`~~", f.Severity, f.Title, f.URL))
		}
		md.BulletList(items...)
		md.PlainText("")
	}
	if len(c.PersistingFindings) > 0 {
		md.PlainText(fmt.Sprintf("*%d findings persisting*", len(c.PersistingFindings)))
	}

	return md.Build()
}

// formatDirection formats a risk direction for display.
func formatDirection(direction string) string {
	switch direction {
	case report.DirectionImproved:
		return "IMPROVED (risk decreased)"
	case report.DirectionWorsened:
		return "WORSENED (risk increased)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}

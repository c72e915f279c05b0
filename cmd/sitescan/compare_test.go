package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitescan/internal/database"
	"github.com/nao1215/sitescan/internal/model"
	"github.com/nao1215/sitescan/internal/report"
)

func testFinding(url, title string, severity model.Severity) model.Finding {
	return model.Finding{
		Target:   "shop",
		URL:      url,
		Detector: "path-exposure",
		Category: model.CategoryPathExposure,
		Severity: severity,
		Title:    title,
		Evidence: url,
	}
}

// seedHistory stores two scans of the shop target and returns the database directory.
func seedHistory(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	first := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	previous := &model.TargetReport{
		Target:  "shop",
		BaseURL: "https://shop.example.com/",
		Findings: []model.Finding{
			testFinding("https://shop.example.com/.env", "Environment file exposed", model.SeverityCritical),
			testFinding("https://shop.example.com/.git/config", "Git config exposed", model.SeverityHigh),
		},
		Summary: model.CrawlSummary{PagesFetched: 20, Termination: model.TerminationComplete},
	}
	current := &model.TargetReport{
		Target:  "shop",
		BaseURL: "https://shop.example.com/",
		Findings: []model.Finding{
			testFinding("https://shop.example.com/.git/config", "Git config exposed", model.SeverityHigh),
			testFinding("https://shop.example.com/server-status", "Server status page exposed", model.SeverityMedium),
		},
		Summary: model.CrawlSummary{PagesFetched: 22, Termination: model.TerminationComplete},
	}

	if err := db.SaveTargetReport(ctx, "run-1", first, previous); err != nil {
		t.Fatalf("save previous: %v", err)
	}
	if err := db.SaveTargetReport(ctx, "run-2", first.Add(24*time.Hour), current); err != nil {
		t.Fatalf("save current: %v", err)
	}
	return dir
}

func runCompare(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewCompareCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNewCompareCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCompareCmd()
	if cmd.Use != "compare [target]" {
		t.Errorf("unexpected Use: got %q", cmd.Use)
	}

	flagsWithShort := map[string]string{
		"list":         "l",
		"list-targets": "L",
		"format":       "f",
		"db-dir":       "",
	}
	for flag, shorthand := range flagsWithShort {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			t.Errorf("expected flag %q to exist", flag)
			continue
		}
		if f.Shorthand != shorthand {
			t.Errorf("flag %q: expected shorthand %q, got %q", flag, shorthand, f.Shorthand)
		}
	}
}

func TestRunCompareCmdText(t *testing.T) {
	t.Parallel()

	dir := seedHistory(t)
	out, err := runCompare(t, "--db-dir", dir, "shop")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"Scan Comparison: shop (https://shop.example.com/)",
		"Risk Status: IMPROVED",
		"New Findings (1):",
		"[+] [MEDIUM] Server status page exposed",
		"Resolved Findings (1):",
		"[-] [CRITICAL] Environment file exposed",
		"Persisting: 1 findings",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunCompareCmdByBaseURL(t *testing.T) {
	t.Parallel()

	dir := seedHistory(t)
	out, err := runCompare(t, "--db-dir", dir, "https://shop.example.com/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Scan Comparison: shop") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunCompareCmdJSON(t *testing.T) {
	t.Parallel()

	dir := seedHistory(t)
	out, err := runCompare(t, "--db-dir", dir, "--format", "json", "shop")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var c report.Comparison
	if err := json.Unmarshal([]byte(out), &c); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if c.Target != "shop" {
		t.Errorf("target = %q, want shop", c.Target)
	}
	if c.Direction != report.DirectionImproved {
		t.Errorf("direction = %q, want %q", c.Direction, report.DirectionImproved)
	}
	if len(c.NewFindings) != 1 || len(c.ResolvedFindings) != 1 || len(c.PersistingFindings) != 1 {
		t.Errorf("new/resolved/persisting = %d/%d/%d, want 1/1/1",
			len(c.NewFindings), len(c.ResolvedFindings), len(c.PersistingFindings))
	}
	if c.Previous.PagesFetched != 20 || c.Current.PagesFetched != 22 {
		t.Errorf("pages = %d/%d, want 20/22", c.Previous.PagesFetched, c.Current.PagesFetched)
	}
	if c.Delta(model.SeverityCritical) != -1 {
		t.Errorf("critical delta = %d, want -1", c.Delta(model.SeverityCritical))
	}
}

func TestRunCompareCmdMarkdown(t *testing.T) {
	t.Parallel()

	dir := seedHistory(t)
	out, err := runCompare(t, "--db-dir", dir, "-f", "markdown", "shop")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"# Scan Comparison: shop",
		"## New Findings (1)",
		"## Resolved Findings (1)",
		"~~**[CRITICAL]** Environment file exposed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunCompareCmdLists(t *testing.T) {
	t.Parallel()

	dir := seedHistory(t)

	t.Run("list targets", func(t *testing.T) {
		out, err := runCompare(t, "--db-dir", dir, "--list-targets")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Scanned targets (1)") || !strings.Contains(out, "• shop") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("list history", func(t *testing.T) {
		out, err := runCompare(t, "--db-dir", dir, "--list", "shop")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Scan history for shop (2 scans)") {
			t.Errorf("unexpected output:\n%s", out)
		}
		if !strings.Contains(out, "C:1 H:1") || !strings.Contains(out, "H:1 M:1") {
			t.Errorf("risk summaries missing:\n%s", out)
		}
	})
}

func TestRunCompareCmdErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    func(dir string) []string
		wantErr string
	}{
		{
			name:    "missing target",
			args:    func(dir string) []string { return []string{"--db-dir", dir} },
			wantErr: "target is required",
		},
		{
			name:    "unknown format",
			args:    func(dir string) []string { return []string{"--db-dir", dir, "-f", "xml", "shop"} },
			wantErr: "invalid report format",
		},
		{
			name:    "no history",
			args:    func(dir string) []string { return []string{"--db-dir", dir, "blog"} },
			wantErr: "no scan history found for blog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := runCompare(t, tt.args(t.TempDir())...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestRunCompareCmdSingleScan(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	err = db.SaveTargetReport(context.Background(), "run-1", time.Now(), &model.TargetReport{
		Target:  "blog",
		BaseURL: "https://blog.example.org/",
	})
	db.Close()
	if err != nil {
		t.Fatal(err)
	}

	_, err = runCompare(t, "--db-dir", dir, "blog")
	if err == nil || !strings.Contains(err.Error(), "at least 2 scans") {
		t.Errorf("expected 'at least 2 scans' error, got %v", err)
	}
}

func TestFormatRiskSummary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		summary map[string]int
		want    string
	}{
		{name: "nil", summary: nil, want: noFindingsMessage},
		{name: "zero counts", summary: map[string]int{"high": 0}, want: noFindingsMessage},
		{name: "ordered by severity", summary: map[string]int{"info": 4, "critical": 1, "medium": 2}, want: "C:1 M:2 I:4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := formatRiskSummary(tt.summary); got != tt.want {
				t.Errorf("formatRiskSummary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatDelta(t *testing.T) {
	t.Parallel()

	tests := map[int]string{3: "+3", 0: "0", -2: "-2"}
	for delta, want := range tests {
		if got := formatDelta(delta); got != want {
			t.Errorf("formatDelta(%d) = %q, want %q", delta, got, want)
		}
	}
}

package detector

import (
	"context"
	"regexp"

	"github.com/nao1215/sitescan/internal/model"
)

// tracePattern recognizes the error output of one platform.
type tracePattern struct {
	platform string
	pattern  *regexp.Regexp
}

func defaultTracePatterns() []tracePattern {
	return []tracePattern{
		{"Java", regexp.MustCompile(`(?m)(?:Exception in thread "[^"]+" [\w.$]+|^\s*at [\w$.<>]+\([\w$]+\.java:\d+\))`)},
		{"Python", regexp.MustCompile(`Traceback \(most recent call last\):`)},
		{"PHP", regexp.MustCompile(`(?i)(?:<b>)?(?:Fatal error|Parse error|Warning|Notice)(?:</b>)?:\s+.{1,300}? in (?:<b>)?[^<\s]+\.php(?:</b>)? on line (?:<b>)?\d+`)},
		{"ASP.NET", regexp.MustCompile(`Server Error in '[^']*' Application|ASP\.NET is configured to show verbose error messages|\[\w+Exception: .+\]`)},
		{"Go", regexp.MustCompile(`goroutine \d+ \[running\]:|panic: .+\n\ngoroutine \d+`)},
		{"Ruby on Rails", regexp.MustCompile(`Action Controller: Exception caught|(?m)\.rb:\d+:in ` + "`")},
		{"Django", regexp.MustCompile(`You're seeing this error because you have <code>DEBUG = True</code>|DEBUG = True</code> in your Django settings`)},
		{"Werkzeug", regexp.MustCompile(`Werkzeug Debugger|The debugger caught an exception in your WSGI application`)},
		{"Laravel", regexp.MustCompile(`Whoops! There was an error\.|Illuminate\\[A-Za-z\\]+Exception|ignition-error`)},
		{"Node.js", regexp.MustCompile(`(?m)^\s*at [\w.<>]+ \((?:/|[A-Z]:\\)[^)]+\.js:\d+:\d+\)`)},
	}
}

// ErrorPageDetector finds stack traces and framework debug pages.
// Such pages usually come with a 5xx status, so it also inspects failed fetches.
type ErrorPageDetector struct {
	patterns []tracePattern
}

// NewErrorPageDetector creates an ErrorPageDetector.
func NewErrorPageDetector() *ErrorPageDetector {
	return &ErrorPageDetector{patterns: defaultTracePatterns()}
}

// Name returns the detector name.
func (d *ErrorPageDetector) Name() string {
	return "error-page"
}

// Category returns the detector category.
func (d *ErrorPageDetector) Category() string {
	return model.CategoryInformationDisclosure
}

// InspectsFailures reports that HTTP error responses are inspected too.
func (d *ErrorPageDetector) InspectsFailures() bool {
	return true
}

// Inspect scans textual bodies for stack trace signatures. One finding is
// reported per platform.
func (d *ErrorPageDetector) Inspect(ctx context.Context, result *model.FetchResult) ([]model.Finding, error) {
	if len(result.Body) == 0 || !result.IsText() {
		return nil, nil
	}

	text := result.Text()
	info := model.GetFindingInfo("stack_trace")
	findings := make([]model.Finding, 0)
	for _, p := range d.patterns {
		if err := ctx.Err(); err != nil {
			return findings, err
		}
		match := p.pattern.FindString(text)
		if match == "" {
			continue
		}
		findings = append(findings, model.NewFinding("stack_trace", model.CategoryInformationDisclosure,
			result.FinalURL, p.platform+" error details exposed", info.Impact, snippet(match, 120)))
	}
	return findings, nil
}

var (
	_ Detector         = (*ErrorPageDetector)(nil)
	_ FailureInspector = (*ErrorPageDetector)(nil)
)

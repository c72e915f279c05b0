package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitescan/internal/model"
)

// Report formats.
const (
	FormatYAML     = "yaml"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// Writer defines the interface for report output.
// Implementations write scan results in various formats.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.Report) (int, error)
}

// NewWriter returns the writer for format. Supported formats are yaml,
// json (pretty-printed), markdown and text.
func NewWriter(format string, output io.Writer) (Writer, error) {
	switch strings.ToLower(format) {
	case FormatYAML, "yml", "":
		return NewYAMLWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case FormatMarkdown, "md":
		return NewMarkdownWriter(output), nil
	case FormatText, "txt":
		return NewTextWriter(output), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// severityOrder lists severities from most to least severe.
var severityOrder = []model.Severity{
	model.SeverityCritical,
	model.SeverityHigh,
	model.SeverityMedium,
	model.SeverityLow,
	model.SeverityInfo,
}

// findingsBySeverity returns the findings of t with severity s, keeping their order.
func findingsBySeverity(t *model.TargetReport, s model.Severity) []model.Finding {
	out := make([]model.Finding, 0)
	for _, f := range t.Findings {
		if f.Severity == s {
			out = append(out, f)
		}
	}
	return out
}

var (
	_ Writer = (*YAMLWriter)(nil)
	_ Writer = (*JSONWriter)(nil)
	_ Writer = (*MarkdownWriter)(nil)
	_ Writer = (*TextWriter)(nil)
	_ Writer = (*MultiWriter)(nil)
)

package report

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/sitescan/internal/model"
)

// YAMLWriter outputs reports as a YAML document, grouped by target.
type YAMLWriter struct {
	baseWriter
	indent int
}

// NewYAMLWriter creates a YAMLWriter that outputs to the given writer.
func NewYAMLWriter(output io.Writer) *YAMLWriter {
	return &YAMLWriter{
		baseWriter: newBaseWriter(output),
		indent:     2,
	}
}

// Write outputs the report in YAML format.
func (w *YAMLWriter) Write(report *model.Report) (int, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(w.indent)
	if err := enc.Encode(report); err != nil {
		return 0, fmt.Errorf("encode yaml report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("encode yaml report: %w", err)
	}
	return w.output.Write(buf.Bytes())
}

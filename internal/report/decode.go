package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/sitescan/internal/model"
)

// Decode reads a report written by YAMLWriter or JSONWriter.
// Unknown fields are rejected so that a report from an incompatible version
// fails loudly instead of losing data.
func Decode(r io.Reader, format string) (*model.Report, error) {
	var report model.Report
	switch strings.ToLower(format) {
	case FormatYAML, "yml", "":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&report); err != nil {
			return nil, fmt.Errorf("decode yaml report: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&report); err != nil {
			return nil, fmt.Errorf("decode json report: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if report.SchemaVersion != model.SchemaVersion {
		return nil, fmt.Errorf("%w: schema version %q", ErrUnsupportedSchema, report.SchemaVersion)
	}
	return &report, nil
}

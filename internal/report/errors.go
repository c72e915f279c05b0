package report

import "errors"

var (
	// ErrUnknownFormat is returned for a report format that has no writer or reader.
	ErrUnknownFormat = errors.New("unknown report format")

	// ErrUnsupportedSchema is returned when a decoded report has an unexpected schema version.
	ErrUnsupportedSchema = errors.New("unsupported report schema")
)

package model

import "errors"

// ErrUnknownSeverity is returned when a severity name or value is not recognised.
var ErrUnknownSeverity = errors.New("unknown severity")

// ErrUnknownTermination is returned when a termination reason is not recognised.
var ErrUnknownTermination = errors.New("unknown termination reason")

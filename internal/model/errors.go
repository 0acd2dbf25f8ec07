package model

import "errors"

// Error classes shared by every component. Callers match them with errors.Is.
var (
	ErrConflict         = errors.New("conflict")
	ErrNotFound         = errors.New("not found")
	ErrMalformedMessage = errors.New("malformed message")
	ErrInvalidConfig    = errors.New("invalid config")
	ErrUnavailable      = errors.New("store unavailable")
)

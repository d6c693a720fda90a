package models

import "errors"

// Sentinel errors shared across services. Stage-local failures are wrapped
// with fmt.Errorf("...: %w", err) so callers can match with errors.Is.
var (
	ErrCaptureFailed        = errors.New("stream capture failed")
	ErrDecodeFailed         = errors.New("frame decode failed")
	ErrDetectorUnavailable  = errors.New("detector backend unavailable")
	ErrInferenceTimeout     = errors.New("inference request timed out")
	ErrInferenceUnavailable = errors.New("inference backend unavailable")
	ErrQueueFull            = errors.New("inference queue full")
)

package domain

import "errors"

// Processing error classes. Validation and resolution failures are recovered
// by quarantining one record; ErrInconsistentTimeline is fatal for a single
// instrument and never for a whole batch.
var (
	ErrValidation           = errors.New("validation error")
	ErrResolution           = errors.New("resolution error")
	ErrInconsistentTimeline = errors.New("inconsistent adjustment timeline")
)

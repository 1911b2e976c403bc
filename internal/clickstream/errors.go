package clickstream

import "errors"

var (
	// ErrNotFound means the target URL is missing, inactive, or expired.
	ErrNotFound = errors.New("url not found")

	// ErrValidation means a submission was malformed at the boundary.
	ErrValidation = errors.New("invalid click submission")

	// ErrStorage means an event write or counter increment failed.
	ErrStorage = errors.New("storage failure")
)

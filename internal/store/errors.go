package store

import "errors"

// Apply errors. Both are informational: the event is dropped and the
// collections stay as they were.
var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrInvalidPayload = errors.New("invalid event payload")
)

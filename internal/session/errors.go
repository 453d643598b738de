package session

import "errors"

// Session errors.
var (
	ErrAlreadyActive = errors.New("connection is already active")
	ErrClosed        = errors.New("session closed")
)

package identity

import "errors"

// Identity errors.
var (
	ErrSignedOut    = errors.New("signed out")
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSecret     = errors.New("signing secret is empty")
)

package realtime

import "errors"

// Client errors.
var (
	ErrNotSignedIn        = errors.New("identity is not signed in")
	ErrAlreadyEstablished = errors.New("connection already established")
	ErrNotConnected       = errors.New("not connected")
	ErrUnauthorized       = errors.New("handshake rejected credential")
	ErrClosed             = errors.New("client closed")

	errNoFreshCredential = errors.New("identity has no newer credential")
)

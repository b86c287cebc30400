package session

import "errors"

var (
	// ErrInvalidState is returned when Start or Stop is not allowed in the
	// current state.
	ErrInvalidState = errors.New("invalid session state")

	// ErrNotConnected is returned by operations that need a running tor.
	ErrNotConnected = errors.New("session not connected")
)

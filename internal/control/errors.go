package control

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedReply is returned when a reply line does not follow the
	// "NNN<sep>text" format.
	ErrMalformedReply = errors.New("malformed control reply")

	// ErrTimeout is returned when tor did not reply within the exchange timeout.
	ErrTimeout = errors.New("control exchange timed out")

	// ErrVersionTooOld is returned by RequireVersion.
	ErrVersionTooOld = errors.New("tor version too old")

	// ErrInvalidCommand is returned for commands containing line breaks.
	ErrInvalidCommand = errors.New("invalid control command")

	// ErrClosed is returned after Close or after an I/O failure.
	ErrClosed = errors.New("control connection closed")
)

// ReplyError is returned when tor answers with a status of 400 or above.
type ReplyError struct {
	// Command is the command keyword. Arguments are omitted so that
	// passwords never end up in error messages.
	Command string
	Status  int
	Message string
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("control %s: %d %s", e.Command, e.Status, e.Message)
}

// Temporary reports a 4xx status, meaning the command may succeed later.
func (e *ReplyError) Temporary() bool {
	return e.Status >= 400 && e.Status < 500
}

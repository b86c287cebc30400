package journal

import "errors"

var (
	// ErrNotFound is returned when no session has the requested ID.
	ErrNotFound = errors.New("session not found")

	// ErrRecorderClosed is returned by Recorder methods after Close.
	ErrRecorderClosed = errors.New("recorder is closed")
)

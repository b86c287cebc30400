package torrc

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidSalt is returned when a hashed control password is requested
	// with a salt that is not exactly SaltSize bytes long.
	ErrInvalidSalt = errors.New("invalid salt: must be 8 bytes")

	// ErrUnknownTransport is returned when a transport name has no entry in
	// the transport table.
	ErrUnknownTransport = errors.New("unknown pluggable transport")

	// ErrInvalidNodeSelector is returned when a node selector cannot be parsed
	// as a fingerprint, a country code or an address range.
	ErrInvalidNodeSelector = errors.New("invalid node selector")

	// ErrInvalidBridge is returned when a Bridge line cannot be parsed.
	ErrInvalidBridge = errors.New("invalid bridge line")
)

// ValidationError is returned by WriteValidated when at least one entry
// reported an error-severity issue. Nothing is written in that case.
type ValidationError struct {
	// Issues holds every issue reported, warnings included.
	Issues []Issue
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var msgs []string
	for _, issue := range e.Issues {
		if issue.Severity == SeverityError {
			msgs = append(msgs, issue.Message)
		}
	}
	return "torrc validation failed: " + strings.Join(msgs, "; ")
}

package config

import "errors"

// Validation errors returned by Config.Validate. Callers match them with
// errors.Is.
var (
	// ErrInvalidPort is returned when a listener port is zero or the SOCKS
	// and control ports collide.
	ErrInvalidPort = errors.New("invalid port: must be 1-65535 and SOCKS and control ports must differ")

	// ErrInvalidStallTimeout is returned when the stall timeout is not positive.
	ErrInvalidStallTimeout = errors.New("invalid stall timeout: must be positive")

	// ErrInvalidGracePeriod is returned when the grace period is not positive.
	ErrInvalidGracePeriod = errors.New("invalid grace period: must be positive")

	// ErrInvalidKeepAlive is returned when the keep-alive period is negative.
	ErrInvalidKeepAlive = errors.New("invalid keep-alive: must be non-negative")

	// ErrNoExecutable is returned when the tor executable name is empty.
	ErrNoExecutable = errors.New("no tor executable name configured")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are requested.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConfigNotFound is returned when an explicitly named configuration
	// file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)

package process

import "errors"

var (
	// ErrAlreadyRunning is returned by Start while a tor process is live.
	ErrAlreadyRunning = errors.New("tor process already running")

	// ErrNotRunning is returned by Stop when there is nothing to stop.
	ErrNotRunning = errors.New("tor process not running")

	// ErrLaunch is returned when the executable could not be started.
	ErrLaunch = errors.New("failed to launch tor")

	// ErrKillFailed is returned by Stop when tor did not exit after being
	// killed.
	ErrKillFailed = errors.New("tor did not exit after kill")
)

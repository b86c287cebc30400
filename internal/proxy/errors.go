package proxy

import "errors"

var (
	// ErrMixedEnabled is returned for a batch mixing enabled and disabled proxies.
	ErrMixedEnabled = errors.New("proxy batch mixes enabled and disabled entries")

	// ErrUnsupportedScheme is returned for schemes other than http, https and socks.
	ErrUnsupportedScheme = errors.New("unsupported proxy scheme")

	// ErrMissingAddress is returned for a proxy without a host and port.
	ErrMissingAddress = errors.New("proxy address is missing")

	// ErrAccessDenied is returned by adapters whose settings cannot be changed
	// by the current user. The manager reports it as Blocked.
	ErrAccessDenied = errors.New("proxy settings access denied")

	// ErrPending is returned by adapters whose settings are being changed by
	// someone else. The manager reports it as Pending.
	ErrPending = errors.New("proxy settings change pending")
)

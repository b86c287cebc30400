package tor

import "errors"

var (
	// ErrProxyNotTor is returned when the endpoint answers but not as a
	// SOCKS5 proxy without authentication.
	ErrProxyNotTor = errors.New("proxy is not a Tor SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when no TCP connection could be made.
	ErrProxyCannotConnect = errors.New("cannot connect to Tor proxy")

	// ErrProxyTimeout is returned when the handshake did not finish in time.
	ErrProxyTimeout = errors.New("timeout connecting to Tor proxy")

	// ErrNotTorExit is returned by Verify when the check service saw a
	// non-tor address.
	ErrNotTorExit = errors.New("traffic does not leave through Tor")
)

// Status is the outcome of Probe.
type Status int

const (
	// StatusOK means the endpoint completed a SOCKS5 CONNECT exchange.
	StatusOK Status = iota
	// StatusWrongType means something other than a tor SocksPort answered.
	StatusWrongType
	// StatusCannotConnect means nothing listens on the endpoint.
	StatusCannotConnect
	// StatusTimeout means the endpoint did not answer in time.
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWrongType:
		return "wrong type (not Tor)"
	case StatusCannotConnect:
		return "cannot connect"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Err returns the matching sentinel, or nil for StatusOK.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusWrongType:
		return ErrProxyNotTor
	case StatusCannotConnect:
		return ErrProxyCannotConnect
	case StatusTimeout:
		return ErrProxyTimeout
	default:
		return errors.New("unknown proxy status")
	}
}

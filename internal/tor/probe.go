package tor

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// DefaultProbeTimeout bounds the whole handshake.
const DefaultProbeTimeout = 2 * time.Second

const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5CmdConnect   = 0x01
	socks5AddrTypeName = 0x03

	// probeTarget never resolves; tor answers CONNECT with an error reply,
	// which is enough to prove it parsed the request.
	probeTarget = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion"
	probePort   = 80
)

// Probe performs a SOCKS5 greeting and CONNECT against addr ("host:port").
// Only an unauthenticated SOCKS5 server that answers CONNECT is StatusOK.
func Probe(ctx context.Context, addr string, timeout time.Duration) Status {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return StatusTimeout
		}
		return StatusCannotConnect
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return StatusCannotConnect
	}

	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return StatusCannotConnect
	}
	greeting := make([]byte, 2)
	if _, err := io.ReadFull(conn, greeting); err != nil {
		return readFailure(err)
	}
	if greeting[0] != socks5Version || greeting[1] != socks5AuthNone {
		return StatusWrongType
	}

	req := []byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrTypeName, byte(len(probeTarget))}
	req = append(req, probeTarget...)
	req = append(req, byte(probePort>>8), byte(probePort&0xFF))
	if _, err := conn.Write(req); err != nil {
		return StatusCannotConnect
	}

	// version, reply, reserved, address type; the reply code itself does
	// not matter.
	reply := make([]byte, 4)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return readFailure(err)
	}
	if reply[0] != socks5Version {
		return StatusWrongType
	}
	return StatusOK
}

func readFailure(err error) Status {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return StatusTimeout
	}
	return StatusWrongType
}

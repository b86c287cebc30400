package portscan

import (
	"net"
	"net/netip"
	"sync"
)

var (
	ipv6Once      sync.Once
	ipv6Supported bool
)

// IPv6LoopbackSupported reports whether ::1 can be bound on this host.
// The probe runs once per process.
func IPv6LoopbackSupported() bool {
	ipv6Once.Do(func() {
		ln, err := net.Listen("tcp6", "[::1]:0")
		if err != nil {
			return
		}
		_ = ln.Close()
		ipv6Supported = true
	})
	return ipv6Supported
}

// LoopbackEndpoints returns 127.0.0.1:port and, when supported, [::1]:port.
func LoopbackEndpoints(port uint16) []netip.AddrPort {
	return loopbackEndpoints(port, IPv6LoopbackSupported())
}

func loopbackEndpoints(port uint16, ipv6 bool) []netip.AddrPort {
	eps := []netip.AddrPort{netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), port)}
	if ipv6 {
		eps = append(eps, netip.AddrPortFrom(netip.IPv6Loopback(), port))
	}
	return eps
}

package proxy

import (
	"context"
	"fmt"
	"net/netip"
	"net/url"
	"strconv"
)

// Supported proxy schemes.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
	SchemeSOCKS = "socks"
)

// NetworkProxy is one proxy server entry.
type NetworkProxy struct {
	Enabled bool
	Address *url.URL
}

// SOCKS returns an enabled socks://host:port proxy for a loopback endpoint.
func SOCKS(ep netip.AddrPort) NetworkProxy {
	return NetworkProxy{
		Enabled: true,
		Address: &url.URL{Scheme: SchemeSOCKS, Host: hostPort(ep)},
	}
}

func hostPort(ep netip.AddrPort) string {
	addr := ep.Addr().WithZone("").Unmap()
	port := strconv.Itoa(int(ep.Port()))
	if addr.Is6() {
		return "[" + addr.String() + "]:" + port
	}
	return addr.String() + ":" + port
}

// Validate checks the scheme and that host and port are present.
func (p NetworkProxy) Validate() error {
	if p.Address == nil || p.Address.Hostname() == "" || p.Address.Port() == "" {
		return ErrMissingAddress
	}
	switch p.Address.Scheme {
	case SchemeHTTP, SchemeHTTPS, SchemeSOCKS:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, p.Address.Scheme)
	}
}

func (p NetworkProxy) String() string {
	state := "disabled"
	if p.Enabled {
		state = "enabled"
	}
	addr := "<nil>"
	if p.Address != nil {
		addr = p.Address.String()
	}
	return addr + " (" + state + ")"
}

// ValidateBatch validates each proxy and requires that all share one
// Enabled value. An empty batch is valid.
func ValidateBatch(proxies []NetworkProxy) error {
	for i, p := range proxies {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("proxy %d: %w", i, err)
		}
		if p.Enabled != proxies[0].Enabled {
			return ErrMixedEnabled
		}
	}
	return nil
}

// State tells whether the host's proxy settings can be changed.
type State int

const (
	// Accessible means settings can be read and written.
	Accessible State = iota
	// Blocked means the settings cannot be changed, e.g. for lack of permission.
	Blocked
	// Pending means another change is in progress.
	Pending
	// ServiceFailure means the settings service failed.
	ServiceFailure
)

func (s State) String() string {
	switch s {
	case Accessible:
		return "Accessible"
	case Blocked:
		return "Blocked"
	case Pending:
		return "Pending"
	case ServiceFailure:
		return "ServiceFailure"
	default:
		return "Unknown"
	}
}

// Manager applies proxies to the host.
type Manager interface {
	GetState(ctx context.Context) (State, error)
	GetProxy(ctx context.Context) ([]NetworkProxy, error)
	SetProxy(ctx context.Context, proxies ...NetworkProxy) error
	ClearProxy(ctx context.Context) error
}

// Adapter is one network interface's proxy and DNS configuration.
type Adapter interface {
	Name() string
	GetProxyServers(ctx context.Context) ([]NetworkProxy, error)
	SetProxyServers(ctx context.Context, proxies []NetworkProxy) error
	GetDNSServers(ctx context.Context) ([]netip.Addr, error)
	SetDNSServers(ctx context.Context, servers []netip.Addr) error
}

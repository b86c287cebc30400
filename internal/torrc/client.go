package torrc

import (
	"net/netip"
	"time"
)

// ClientOptions covers client networking: SOCKS/DNS listeners, keep-alive and
// circuit lifetime.
type ClientOptions struct {
	// ClientOnly prevents tor from ever acting as a relay.
	ClientOnly bool

	// EnableLogScrubbing hides addresses in tor's own logs. It maps to the
	// inverse of tor's SafeLogging keyword as this project uses it: scrubbing
	// enabled emits "SafeLogging 0".
	EnableLogScrubbing bool

	// ExternalConnectionKeepAlive is emitted as KeepAlivePeriod in seconds.
	ExternalConnectionKeepAlive time.Duration

	// MaxCircuitDirtiness limits how long a circuit is reused for new streams.
	MaxCircuitDirtiness time.Duration

	// SocksEndpoints are the local SOCKS listeners, one SocksPort line each.
	SocksEndpoints []netip.AddrPort

	// DNSEndpoints are optional local DNS listeners.
	DNSEndpoints []netip.AddrPort

	// AutomapHostsOnResolve maps .onion/.exit lookups made through DNSPort.
	AutomapHostsOnResolve bool

	// HardwareAcceleration lets tor use OpenSSL engine acceleration.
	HardwareAcceleration bool
}

var _ Entry = (*ClientOptions)(nil)

// Validate implements Entry.
func (o *ClientOptions) Validate() []Issue {
	var issues []Issue
	if len(o.SocksEndpoints) == 0 {
		issues = append(issues, warnf("SocksPort: no endpoints, tor will listen on its default 9050"))
	}
	issues = append(issues, validateEndpoints("SocksPort", o.SocksEndpoints)...)
	issues = append(issues, validateEndpoints("DNSPort", o.DNSEndpoints)...)
	if o.ExternalConnectionKeepAlive < 0 {
		issues = append(issues, errorf("KeepAlivePeriod: must not be negative"))
	} else if o.ExternalConnectionKeepAlive%time.Second != 0 {
		issues = append(issues, warnf("KeepAlivePeriod: %s is truncated to whole seconds", o.ExternalConnectionKeepAlive))
	}
	if o.MaxCircuitDirtiness < 0 {
		issues = append(issues, errorf("MaxCircuitDirtiness: must not be negative"))
	}
	if o.AutomapHostsOnResolve && len(o.DNSEndpoints) == 0 {
		issues = append(issues, warnf("AutomapHostsOnResolve: has no effect without DNSPort"))
	}
	return issues
}

// Serialize implements Entry.
func (o *ClientOptions) Serialize(w *Writer) {
	w.Bool("ClientOnly", o.ClientOnly)
	w.Bool("SafeLogging", !o.EnableLogScrubbing)
	w.Seconds("KeepAlivePeriod", o.ExternalConnectionKeepAlive)
	w.Seconds("MaxCircuitDirtiness", o.MaxCircuitDirtiness)
	w.Endpoints("SocksPort", o.SocksEndpoints)
	w.Endpoints("DNSPort", o.DNSEndpoints)
	if len(o.DNSEndpoints) > 0 {
		w.Bool("AutomapHostsOnResolve", o.AutomapHostsOnResolve)
	}
	w.Bool("HardwareAccel", o.HardwareAcceleration)
}

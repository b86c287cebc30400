package torrc

import (
	"fmt"
	"net/netip"
	"os"
	"sort"
	"strings"
)

// Bridge is a single Bridge line.
type Bridge struct {
	Transport   Transport
	Endpoint    netip.AddrPort
	Fingerprint string
	// Args are transport arguments such as "cert=..." or "iat-mode=0",
	// emitted in order.
	Args []string
}

// String renders the value part of the Bridge line.
func (b Bridge) String() string {
	parts := make([]string, 0, 3+len(b.Args))
	if b.Transport != TransportVanilla {
		parts = append(parts, b.Transport.Info().Keyword)
	}
	parts = append(parts, FormatEndpoint(b.Endpoint))
	if b.Fingerprint != "" {
		parts = append(parts, strings.ToUpper(b.Fingerprint))
	}
	parts = append(parts, b.Args...)
	return strings.Join(parts, " ")
}

// ParseBridge reads the value of a Bridge line as published by
// bridges.torproject.org: "[transport] addr:port [fingerprint] [args...]".
func ParseBridge(line string) (Bridge, error) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "Bridge "))
	if len(fields) == 0 {
		return Bridge{}, fmt.Errorf("%w: empty line", ErrInvalidBridge)
	}

	var b Bridge
	if _, err := netip.ParseAddrPort(fields[0]); err != nil {
		t, err := ParseTransport(fields[0])
		if err != nil {
			return Bridge{}, err
		}
		b.Transport = t
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return Bridge{}, fmt.Errorf("%w: missing address in %q", ErrInvalidBridge, line)
	}
	ep, err := netip.ParseAddrPort(fields[0])
	if err != nil {
		return Bridge{}, fmt.Errorf("%w: %w", ErrInvalidBridge, err)
	}
	b.Endpoint = ep
	fields = fields[1:]

	if len(fields) > 0 && isFingerprint(fields[0]) {
		b.Fingerprint = fields[0]
		fields = fields[1:]
	}
	if len(fields) > 0 {
		b.Args = fields
	}
	return b, nil
}

// TransportPlugin is a ClientTransportPlugin line.
type TransportPlugin struct {
	Transports []Transport
	Path       string
	Args       []string
}

// BridgeOptions configures bridges and the plugins that serve their transports.
type BridgeOptions struct {
	UseBridges bool
	Bridges    []Bridge
	Plugins    []TransportPlugin
}

var _ Entry = (*BridgeOptions)(nil)

// Validate implements Entry.
func (o *BridgeOptions) Validate() []Issue {
	var issues []Issue
	if o.UseBridges && len(o.Bridges) == 0 {
		issues = append(issues, errorf("UseBridges: enabled without any Bridge line"))
	}
	if !o.UseBridges && len(o.Bridges) > 0 {
		issues = append(issues, warnf("Bridge: %d bridges configured but UseBridges is off", len(o.Bridges)))
	}

	served := make(map[Transport]bool)
	for _, p := range o.Plugins {
		if len(p.Transports) == 0 {
			issues = append(issues, errorf("ClientTransportPlugin: no transports listed for %s", p.Path))
		}
		for _, t := range p.Transports {
			if t == TransportVanilla {
				issues = append(issues, errorf("ClientTransportPlugin: vanilla bridges need no plugin"))
				continue
			}
			served[t] = true
		}
		if fi, err := os.Stat(p.Path); err != nil || fi.IsDir() {
			issues = append(issues, errorf("ClientTransportPlugin: executable not found: %s", p.Path))
		}
	}

	for _, b := range o.Bridges {
		if !b.Endpoint.IsValid() || b.Endpoint.Port() == 0 {
			issues = append(issues, errorf("Bridge: invalid endpoint in %q", b.String()))
		}
		if b.Fingerprint != "" && !isFingerprint(b.Fingerprint) {
			issues = append(issues, errorf("Bridge: invalid fingerprint %q", b.Fingerprint))
		}
		if b.Transport != TransportVanilla && !served[b.Transport] {
			issues = append(issues, warnf("Bridge: no ClientTransportPlugin serves %s", b.Transport))
		}
	}
	return issues
}

// Serialize implements Entry.
func (o *BridgeOptions) Serialize(w *Writer) {
	w.Bool("UseBridges", o.UseBridges)
	for _, p := range o.Plugins {
		names := make([]string, 0, len(p.Transports))
		for _, t := range p.Transports {
			if kw := t.Info().Keyword; kw != "" {
				names = append(names, kw)
			}
		}
		sort.Strings(names)
		values := append([]string{strings.Join(names, ","), "exec", p.Path}, p.Args...)
		w.Line("ClientTransportPlugin", values...)
	}
	for _, b := range o.Bridges {
		w.Line("Bridge", b.String())
	}
}

package torrc

import (
	"fmt"
	"strings"
)

// Transport identifies a pluggable transport.
type Transport int

const (
	// TransportVanilla is a plain bridge without obfuscation.
	TransportVanilla Transport = iota
	TransportObfs4
	TransportMeekLite
	TransportSnowflake
	TransportWebTunnel
	TransportConjure
)

// TransportInfo describes how a transport appears in a torrc.
type TransportInfo struct {
	// Keyword is the name used in Bridge and ClientTransportPlugin lines.
	Keyword string

	// Executable is the plugin binary that conventionally provides the
	// transport. Empty for vanilla bridges.
	Executable string

	// DisplayName is a human readable label.
	DisplayName string
}

// transports is indexed by Transport.
var transports = []TransportInfo{
	TransportVanilla:   {Keyword: "", Executable: "", DisplayName: "Vanilla"},
	TransportObfs4:     {Keyword: "obfs4", Executable: "lyrebird", DisplayName: "obfs4"},
	TransportMeekLite:  {Keyword: "meek_lite", Executable: "lyrebird", DisplayName: "meek-azure"},
	TransportSnowflake: {Keyword: "snowflake", Executable: "snowflake-client", DisplayName: "Snowflake"},
	TransportWebTunnel: {Keyword: "webtunnel", Executable: "lyrebird", DisplayName: "WebTunnel"},
	TransportConjure:   {Keyword: "conjure", Executable: "conjure-client", DisplayName: "Conjure"},
}

// Info returns the table entry for t.
func (t Transport) Info() TransportInfo {
	if t < 0 || int(t) >= len(transports) {
		return TransportInfo{}
	}
	return transports[t]
}

// String returns the torrc keyword, or "vanilla".
func (t Transport) String() string {
	if t == TransportVanilla {
		return "vanilla"
	}
	if kw := t.Info().Keyword; kw != "" {
		return kw
	}
	return fmt.Sprintf("Transport(%d)", int(t))
}

// ParseTransport maps a torrc keyword (or "vanilla") back to a Transport.
func ParseTransport(name string) (Transport, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "vanilla" {
		return TransportVanilla, nil
	}
	for i, info := range transports {
		if info.Keyword == name {
			return Transport(i), nil
		}
	}
	return TransportVanilla, fmt.Errorf("%w: %q", ErrUnknownTransport, name)
}

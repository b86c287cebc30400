// Package torrc builds the configuration file consumed by the tor process.
//
// A torrc is a line-oriented text file of "Keyword value" directives. This
// package models it as a closed set of entries, each covering one feature area
// (client options, control port, bridges, filesystem, node selection, dormant
// mode and freeform lines). Every entry can validate itself and serialize
// itself into a caller-owned io.Writer:
//
//	entries := []torrc.Entry{
//	    &torrc.ClientOptions{ClientOnly: true, SocksEndpoints: socks},
//	    &torrc.ControlPortOptions{Endpoints: ctrl, Password: password},
//	}
//	if err := torrc.WriteValidated(f, entries...); err != nil {
//	    return err
//	}
//
// Within an entry the order of emitted keywords is fixed; across entries the
// order is the order the caller passes them in.
package torrc

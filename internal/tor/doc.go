// Package tor checks that a session's SOCKS endpoint really is tor.
//
// Probe speaks just enough SOCKS5 to tell a tor SocksPort from some other
// service bound to the same port. Verifier goes further and asks
// check.torproject.org, through the proxy, whether the request left the
// network from a tor exit.
package tor

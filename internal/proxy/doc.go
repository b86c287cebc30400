// Package proxy defines how a session hands its SOCKS endpoints to the
// host's network configuration.
//
// A Manager is what the session talks to: it reports whether proxy settings
// can be changed and applies or clears them. An Adapter is one network
// interface's proxy and DNS settings. AdapterManager turns a set of adapters
// into a Manager and restores the previous settings on ClearProxy.
//
// Every batch of proxies pushed to an adapter must agree on Enabled; a
// mixed batch is rejected before any adapter is touched.
package proxy

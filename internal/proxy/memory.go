package proxy

import (
	"context"
	"net/netip"
	"slices"
	"sync"
)

// MemoryAdapter keeps proxy and DNS settings in memory. It stands in for a
// real network interface when the host's settings must not be touched.
type MemoryAdapter struct {
	name string

	mu      sync.Mutex
	proxies []NetworkProxy
	dns     []netip.Addr
	err     error
	sets    int
}

// NewMemoryAdapter returns an empty adapter called name.
func NewMemoryAdapter(name string) *MemoryAdapter {
	return &MemoryAdapter{name: name}
}

// Name implements Adapter.
func (a *MemoryAdapter) Name() string {
	return a.name
}

// Fail makes every following call return err. A nil err clears it.
func (a *MemoryAdapter) Fail(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

// SetCount returns how many times SetProxyServers succeeded.
func (a *MemoryAdapter) SetCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sets
}

// GetProxyServers implements Adapter.
func (a *MemoryAdapter) GetProxyServers(_ context.Context) ([]NetworkProxy, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	return slices.Clone(a.proxies), nil
}

// SetProxyServers implements Adapter. A mixed batch is rejected.
func (a *MemoryAdapter) SetProxyServers(_ context.Context, proxies []NetworkProxy) error {
	if err := ValidateBatch(proxies); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.proxies = slices.Clone(proxies)
	a.sets++
	return nil
}

// GetDNSServers implements Adapter.
func (a *MemoryAdapter) GetDNSServers(_ context.Context) ([]netip.Addr, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	return slices.Clone(a.dns), nil
}

// SetDNSServers implements Adapter.
func (a *MemoryAdapter) SetDNSServers(_ context.Context, servers []netip.Addr) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.dns = slices.Clone(servers)
	return nil
}

package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"slices"
	"sync"
)

// AdapterManager is a Manager over a fixed set of adapters. SetProxy saves
// each adapter's previous settings and ClearProxy puts them back.
type AdapterManager struct {
	adapters []Adapter
	dns      []netip.Addr
	logger   *slog.Logger

	mu      sync.Mutex
	applied []NetworkProxy
	saved   map[string]snapshot
}

type snapshot struct {
	proxies []NetworkProxy
	dns     []netip.Addr
}

// ManagerOption configures an AdapterManager.
type ManagerOption func(*AdapterManager)

// WithDNSServers makes SetProxy also point each adapter's DNS at servers,
// typically tor's DNSPort.
func WithDNSServers(servers ...netip.Addr) ManagerOption {
	return func(m *AdapterManager) {
		m.dns = servers
	}
}

// WithManagerLogger sets the logger.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *AdapterManager) {
		m.logger = l
	}
}

// NewAdapterManager returns a Manager for adapters.
func NewAdapterManager(adapters []Adapter, opts ...ManagerOption) *AdapterManager {
	m := &AdapterManager{
		adapters: adapters,
		logger:   slog.Default(),
		saved:    make(map[string]snapshot),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetState reads every adapter and reports the first problem found. No
// adapters means there is nothing to configure, reported as Blocked.
func (m *AdapterManager) GetState(ctx context.Context) (State, error) {
	if len(m.adapters) == 0 {
		return Blocked, nil
	}
	for _, a := range m.adapters {
		if _, err := a.GetProxyServers(ctx); err != nil {
			switch {
			case errors.Is(err, ErrAccessDenied):
				return Blocked, nil
			case errors.Is(err, ErrPending):
				return Pending, nil
			default:
				m.logger.Warn("proxy adapter failed", "adapter", a.Name(), "error", err)
				return ServiceFailure, nil
			}
		}
	}
	return Accessible, nil
}

// GetProxy returns the proxies applied by the last SetProxy.
func (m *AdapterManager) GetProxy(_ context.Context) ([]NetworkProxy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.applied), nil
}

// SetProxy validates the batch and pushes it to every adapter.
func (m *AdapterManager) SetProxy(ctx context.Context, proxies ...NetworkProxy) error {
	if err := ValidateBatch(proxies); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.adapters {
		if _, ok := m.saved[a.Name()]; !ok {
			snap, err := m.snapshot(ctx, a)
			if err != nil {
				return err
			}
			m.saved[a.Name()] = snap
		}
		if err := a.SetProxyServers(ctx, proxies); err != nil {
			return fmt.Errorf("adapter %s: %w", a.Name(), err)
		}
		if len(m.dns) > 0 {
			if err := a.SetDNSServers(ctx, m.dns); err != nil {
				return fmt.Errorf("adapter %s dns: %w", a.Name(), err)
			}
		}
		m.logger.Debug("proxy applied", "adapter", a.Name(), "count", len(proxies))
	}
	m.applied = slices.Clone(proxies)
	return nil
}

func (m *AdapterManager) snapshot(ctx context.Context, a Adapter) (snapshot, error) {
	proxies, err := a.GetProxyServers(ctx)
	if err != nil {
		return snapshot{}, fmt.Errorf("adapter %s: %w", a.Name(), err)
	}
	var dns []netip.Addr
	if len(m.dns) > 0 {
		if dns, err = a.GetDNSServers(ctx); err != nil {
			return snapshot{}, fmt.Errorf("adapter %s dns: %w", a.Name(), err)
		}
	}
	return snapshot{proxies: proxies, dns: dns}, nil
}

// ClearProxy restores each adapter's settings from before the first
// SetProxy. Every adapter is attempted; the errors are joined.
func (m *AdapterManager) ClearProxy(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, a := range m.adapters {
		snap, ok := m.saved[a.Name()]
		if !ok {
			continue
		}
		if err := ValidateBatch(snap.proxies); err != nil {
			m.logger.Warn("discarding invalid saved proxies", "adapter", a.Name(), "error", err)
			snap.proxies = nil
		}
		if err := a.SetProxyServers(ctx, snap.proxies); err != nil {
			errs = append(errs, fmt.Errorf("adapter %s: %w", a.Name(), err))
			continue
		}
		if len(m.dns) > 0 {
			if err := a.SetDNSServers(ctx, snap.dns); err != nil {
				errs = append(errs, fmt.Errorf("adapter %s dns: %w", a.Name(), err))
				continue
			}
		}
		delete(m.saved, a.Name())
	}
	if len(errs) == 0 {
		m.applied = nil
	}
	return errors.Join(errs...)
}

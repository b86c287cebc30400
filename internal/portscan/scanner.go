// Package portscan picks free local TCP ports close to a preferred value.
//
// The scanner enumerates the TCP ports that are currently bound or in use
// on the host and searches outward from the preferred port. It does not
// reserve anything: another process may still take the port between the scan
// and the bind, so callers must handle bind failures.
package portscan

import (
	"errors"
	"fmt"
)

const (
	minPort = 1
	maxPort = 65535
)

// ErrNoFreePort is returned when every port in 1-65535 is active or excluded.
var ErrNoFreePort = errors.New("no free TCP port available")

// ActivePortsFunc returns the set of TCP ports that are not in the CLOSE state.
type ActivePortsFunc func() (map[int]struct{}, error)

// Scanner finds free ports.
type Scanner struct {
	activePorts ActivePortsFunc
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithActivePorts replaces the OS enumeration.
func WithActivePorts(fn ActivePortsFunc) Option {
	return func(s *Scanner) {
		s.activePorts = fn
	}
}

// New returns a Scanner backed by the platform's connection table.
func New(opts ...Option) *Scanner {
	s := &Scanner{activePorts: ActivePorts}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClosestFreePort returns preferred when it is free, otherwise the nearest free
// port, trying preferred-1 before preferred+1 at each distance. Ports listed in
// excluded are treated as taken.
func (s *Scanner) ClosestFreePort(preferred uint16, excluded map[int]struct{}) (uint16, error) {
	active, err := s.activePorts()
	if err != nil {
		return 0, fmt.Errorf("failed to enumerate active TCP ports: %w", err)
	}
	taken := func(p int) bool {
		if _, ok := active[p]; ok {
			return true
		}
		_, ok := excluded[p]
		return ok
	}

	start := int(preferred)
	if start < minPort {
		start = minPort
	}
	for offset := 0; start-offset >= minPort || start+offset <= maxPort; offset++ {
		for _, p := range candidates(start, offset) {
			if p < minPort || p > maxPort {
				continue
			}
			if !taken(p) {
				return uint16(p), nil //nolint:gosec // bounded by maxPort
			}
		}
	}
	return 0, ErrNoFreePort
}

func candidates(start, offset int) []int {
	if offset == 0 {
		return []int{start}
	}
	return []int{start - offset, start + offset}
}

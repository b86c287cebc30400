//go:build !linux && !windows && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package portscan

import "errors"

// ActivePorts has no connection table to read on this platform.
func ActivePorts() (map[int]struct{}, error) {
	return nil, errors.New("active TCP port enumeration is not supported on this platform")
}

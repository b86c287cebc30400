//go:build windows

package portscan

import (
	"bytes"
	"fmt"
	"os/exec"
)

// ActivePorts parses `netstat -ano -p TCP` and `-p TCPv6`.
func ActivePorts() (map[int]struct{}, error) {
	ports := make(map[int]struct{})
	for _, proto := range []string{"TCP", "TCPv6"} {
		out, err := exec.Command("netstat", "-ano", "-p", proto).Output() //nolint:gosec // fixed arguments
		if err != nil {
			return nil, fmt.Errorf("netstat -p %s: %w", proto, err)
		}
		if err := parseNetstat(bytes.NewReader(out), windowsNetstat, ports); err != nil {
			return nil, err
		}
	}
	return ports, nil
}

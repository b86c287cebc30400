//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package portscan

import (
	"bytes"
	"fmt"
	"os/exec"
)

// ActivePorts parses `netstat -an -p tcp`, which lists IPv4 and IPv6 sockets.
func ActivePorts() (map[int]struct{}, error) {
	out, err := exec.Command("netstat", "-an", "-p", "tcp").Output()
	if err != nil {
		return nil, fmt.Errorf("netstat: %w", err)
	}
	ports := make(map[int]struct{})
	if err := parseNetstat(bytes.NewReader(out), bsdNetstat, ports); err != nil {
		return nil, err
	}
	return ports, nil
}

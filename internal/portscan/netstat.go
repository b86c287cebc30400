package portscan

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// netstatLayout describes where a netstat flavour puts the columns we need.
type netstatLayout struct {
	localColumn int
	stateColumn int
	// portSep separates host and port in the local address column: ':' on
	// Windows, '.' on BSD-derived systems ("127.0.0.1.9050", "*.22").
	portSep byte
}

var (
	windowsNetstat = netstatLayout{localColumn: 1, stateColumn: 3, portSep: ':'}
	bsdNetstat     = netstatLayout{localColumn: 3, stateColumn: 5, portSep: '.'}
)

// parseNetstat adds the local ports of every TCP row that is not CLOSED.
func parseNetstat(r io.Reader, layout netstatLayout, ports map[int]struct{}) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) <= layout.localColumn || !strings.HasPrefix(strings.ToLower(fields[0]), "tcp") {
			continue
		}
		if len(fields) > layout.stateColumn && strings.EqualFold(fields[layout.stateColumn], "CLOSED") {
			continue
		}
		local := fields[layout.localColumn]
		i := strings.LastIndexByte(local, layout.portSep)
		if i < 0 {
			continue
		}
		port, err := strconv.Atoi(local[i+1:])
		if err != nil || port < minPort || port > maxPort {
			continue
		}
		ports[port] = struct{}{}
	}
	return scanner.Err()
}

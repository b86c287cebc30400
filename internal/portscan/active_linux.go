//go:build linux

package portscan

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
)

// tcpStateClose is the kernel's TCP_CLOSE state as printed in /proc/net/tcp.
const tcpStateClose = "07"

// ActivePorts reads the local port of every non-closed socket from
// /proc/net/tcp and /proc/net/tcp6.
func ActivePorts() (map[int]struct{}, error) {
	ports := make(map[int]struct{})
	var found bool
	for _, path := range []string{"/proc/net/tcp", "/proc/net/tcp6"} {
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		found = true
		err = parseProcNet(f, ports)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
	}
	if !found {
		return nil, errors.New("no /proc/net/tcp tables available")
	}
	return ports, nil
}

// parseProcNet adds the local ports listed in a /proc/net/tcp{,6} table.
func parseProcNet(r io.Reader, ports map[int]struct{}) error {
	scanner := bufio.NewScanner(r)
	scanner.Scan() // header

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		if fields[3] == tcpStateClose {
			continue
		}
		local := fields[1]
		i := strings.LastIndexByte(local, ':')
		if i < 0 {
			continue
		}
		port, err := strconv.ParseUint(local[i+1:], 16, 16)
		if err != nil || port == 0 {
			continue
		}
		ports[int(port)] = struct{}{}
	}
	return scanner.Err()
}

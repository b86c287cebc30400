package portscan

import (
	"errors"
	"net"
	"runtime"
	"strconv"
	"strings"
	"testing"
)

func fixed(ports ...int) ActivePortsFunc {
	return func() (map[int]struct{}, error) {
		m := make(map[int]struct{}, len(ports))
		for _, p := range ports {
			m[p] = struct{}{}
		}
		return m, nil
	}
}

func set(ports ...int) map[int]struct{} {
	m := make(map[int]struct{}, len(ports))
	for _, p := range ports {
		m[p] = struct{}{}
	}
	return m
}

func TestClosestFreePort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		active    []int
		excluded  map[int]struct{}
		preferred uint16
		want      uint16
	}{
		{name: "preferred is free", preferred: 9050, want: 9050},
		{name: "preferred free despite unrelated exclusions", excluded: set(9051, 9052), preferred: 9050, want: 9050},
		{name: "below is tried before above", active: []int{9050}, preferred: 9050, want: 9049},
		{name: "above when below is taken", active: []int{9050, 9049}, preferred: 9050, want: 9051},
		{name: "exclusions count as taken", active: []int{9050}, excluded: set(9049, 9051), preferred: 9050, want: 9048},
		{name: "lower bound is respected", active: []int{1}, preferred: 1, want: 2},
		{name: "upper bound is respected", active: []int{65535, 65534}, preferred: 65535, want: 65533},
		{name: "port zero searches from one", preferred: 0, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := New(WithActivePorts(fixed(tt.active...)))
			got, err := s.ClosestFreePort(tt.preferred, tt.excluded)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ClosestFreePort(%d) = %d, want %d", tt.preferred, got, tt.want)
			}
		})
	}
}

func TestClosestFreePortExhausted(t *testing.T) {
	t.Parallel()

	all := make([]int, 0, maxPort)
	for p := minPort; p <= maxPort; p++ {
		all = append(all, p)
	}
	s := New(WithActivePorts(fixed(all...)))
	if _, err := s.ClosestFreePort(9050, nil); !errors.Is(err, ErrNoFreePort) {
		t.Errorf("expected ErrNoFreePort, got %v", err)
	}
}

func TestClosestFreePortEnumerationError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := New(WithActivePorts(func() (map[int]struct{}, error) { return nil, boom }))
	if _, err := s.ClosestFreePort(9050, nil); !errors.Is(err, boom) {
		t.Errorf("expected wrapped enumeration error, got %v", err)
	}
}

func TestClosestFreePortAvoidsBoundPort(t *testing.T) {
	t.Parallel()

	if runtime.GOOS != "linux" {
		t.Skip("relies on /proc/net/tcp")
	}

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	bound := uint16(ln.Addr().(*net.TCPAddr).Port) //nolint:gosec // port fits

	got, err := New().ClosestFreePort(bound, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == bound {
		t.Fatalf("returned the bound port %d", bound)
	}

	probe, err := net.Listen("tcp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(int(got))))
	if err != nil {
		t.Fatalf("returned port %d is not bindable: %v", got, err)
	}
	_ = probe.Close()
}

func TestParseNetstat(t *testing.T) {
	t.Parallel()

	t.Run("windows", func(t *testing.T) {
		t.Parallel()

		out := `
Active Connections

  Proto  Local Address          Foreign Address        State           PID
  TCP    0.0.0.0:135            0.0.0.0:0              LISTENING       888
  TCP    127.0.0.1:9050         127.0.0.1:50000        ESTABLISHED     1234
  TCP    [::1]:9051             [::]:0                 LISTENING       1234
  TCP    127.0.0.1:8080         127.0.0.1:50001        CLOSED          0
`
		ports := make(map[int]struct{})
		if err := parseNetstat(strings.NewReader(out), windowsNetstat, ports); err != nil {
			t.Fatal(err)
		}
		for _, want := range []int{135, 9050, 9051} {
			if _, ok := ports[want]; !ok {
				t.Errorf("expected port %d in %v", want, ports)
			}
		}
		if _, ok := ports[8080]; ok {
			t.Error("closed socket should be ignored")
		}
	})

	t.Run("bsd", func(t *testing.T) {
		t.Parallel()

		out := `Active Internet connections (including servers)
Proto Recv-Q Send-Q  Local Address          Foreign Address        (state)
tcp4       0      0  127.0.0.1.9050         *.*                    LISTEN
tcp6       0      0  ::1.9051               *.*                    LISTEN
tcp4       0      0  *.22                   *.*                    LISTEN
`
		ports := make(map[int]struct{})
		if err := parseNetstat(strings.NewReader(out), bsdNetstat, ports); err != nil {
			t.Fatal(err)
		}
		for _, want := range []int{9050, 9051, 22} {
			if _, ok := ports[want]; !ok {
				t.Errorf("expected port %d in %v", want, ports)
			}
		}
	})
}

func TestLoopbackEndpoints(t *testing.T) {
	t.Parallel()

	eps := loopbackEndpoints(9050, true)
	if len(eps) != 2 || eps[0].String() != "127.0.0.1:9050" || eps[1].String() != "[::1]:9050" {
		t.Errorf("loopbackEndpoints(ipv6) = %v", eps)
	}
	eps = loopbackEndpoints(9050, false)
	if len(eps) != 1 {
		t.Errorf("loopbackEndpoints(ipv4 only) = %v", eps)
	}
	if got := LoopbackEndpoints(1); len(got) == 0 || !got[0].Addr().IsLoopback() {
		t.Errorf("LoopbackEndpoints() = %v", got)
	}
}

package session

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/torgate/internal/log"
	"github.com/nao1215/torgate/internal/process"
	"github.com/nao1215/torgate/internal/proxy"
	"github.com/nao1215/torgate/internal/torrc"
)

// fakeController mimics process.Process: the test drives its events.
type fakeController struct {
	mu       sync.Mutex
	state    process.State
	startErr error
	entries  []torrc.Entry
	starts   int
	stops    int
	subs     []func(process.Event)
}

func (c *fakeController) Start(entries ...torrc.Entry) error {
	c.mu.Lock()
	c.starts++
	if c.startErr != nil {
		c.state = process.Blocked
		c.mu.Unlock()
		c.emit(process.Event{Kind: process.StateChanged, State: process.Blocked})
		return c.startErr
	}
	c.entries = entries
	c.mu.Unlock()
	c.setState(process.Started)
	return nil
}

func (c *fakeController) Stop(context.Context) error {
	c.mu.Lock()
	c.stops++
	live := c.state.Live()
	c.mu.Unlock()
	if !live {
		return process.ErrNotRunning
	}
	c.setState(process.Stopped)
	return nil
}

func (c *fakeController) State() process.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeController) Subscribe(fn func(process.Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
	return func() {}
}

func (c *fakeController) emit(ev process.Event) {
	c.mu.Lock()
	subs := append([]func(process.Event){}, c.subs...)
	c.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (c *fakeController) setState(st process.State) {
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()
	c.emit(process.Event{Kind: process.StateChanged, State: st})
}

func (c *fakeController) progress(p int) {
	c.emit(process.Event{Kind: process.ProgressChanged, Progress: p})
	switch {
	case p == 100:
		c.setState(process.Running)
	case c.State() != process.Bootstrapping:
		c.setState(process.Bootstrapping)
	}
}

func (c *fakeController) controlOptions() *torrc.ControlPortOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if o, ok := e.(*torrc.ControlPortOptions); ok {
			return o
		}
	}
	return nil
}

// fakeManager records proxy calls.
type fakeManager struct {
	mu     sync.Mutex
	state  proxy.State
	set    [][]proxy.NetworkProxy
	clears int
}

func (m *fakeManager) GetState(context.Context) (proxy.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *fakeManager) GetProxy(context.Context) ([]proxy.NetworkProxy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.set) == 0 {
		return nil, nil
	}
	return m.set[len(m.set)-1], nil
}

func (m *fakeManager) SetProxy(_ context.Context, proxies ...proxy.NetworkProxy) error {
	if err := proxy.ValidateBatch(proxies); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set = append(m.set, proxies)
	return nil
}

func (m *fakeManager) ClearProxy(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	return nil
}

func (m *fakeManager) counts() (sets, clears int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.set), m.clears
}

// fixedPorts hands out preferred ports unless they are excluded.
type fixedPorts struct {
	mu    sync.Mutex
	calls []uint16
}

func (f *fixedPorts) ClosestFreePort(preferred uint16, excluded map[int]struct{}) (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, preferred)
	p := preferred
	for {
		if _, ok := excluded[int(p)]; !ok {
			return p, nil
		}
		p++
	}
}

func loopbackBoth(port uint16) []netip.AddrPort {
	return []netip.AddrPort{
		netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), port),
		netip.AddrPortFrom(netip.IPv6Loopback(), port),
	}
}

type states struct {
	ch chan State
}

func watch(s *Session) *states {
	w := &states{ch: make(chan State, 32)}
	s.Subscribe(func(st State) { w.ch <- st })
	return w
}

func (w *states) expect(t *testing.T, want ...State) {
	t.Helper()
	for _, st := range want {
		select {
		case got := <-w.ch:
			if got != st {
				t.Fatalf("state = %v, want %v", got, st)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %v", st)
		}
	}
}

func (w *states) none(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case got := <-w.ch:
		t.Fatalf("unexpected state %v", got)
	case <-time.After(within):
	}
}

func newTestSession(t *testing.T, opts ...Option) (*Session, *fakeController, *fakeManager) {
	t.Helper()
	ctrl := &fakeController{}
	mgr := &fakeManager{state: proxy.Accessible}
	opts = append([]Option{
		WithLogger(log.Discard()),
		WithPortFinder(&fixedPorts{}),
		WithLoopback(loopbackBoth),
	}, opts...)
	return New(ctrl, mgr, opts...), ctrl, mgr
}

func TestStartBuildsConfiguration(t *testing.T) {
	t.Parallel()

	s, ctrl, _ := newTestSession(t, WithPorts(9050, 9050))
	w := watch(s)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	w.expect(t, Connecting)

	if len(ctrl.entries) != 2 {
		t.Fatalf("entries = %d, want client and control options", len(ctrl.entries))
	}
	client, ok := ctrl.entries[0].(*torrc.ClientOptions)
	if !ok {
		t.Fatalf("entries[0] = %T", ctrl.entries[0])
	}
	if len(client.SocksEndpoints) != 2 || client.SocksEndpoints[0].String() != "127.0.0.1:9050" ||
		client.SocksEndpoints[1].String() != "[::1]:9050" {
		t.Errorf("SocksEndpoints = %v", client.SocksEndpoints)
	}
	ctl := ctrl.controlOptions()
	if ctl == nil || ctl.Password == "" {
		t.Fatalf("control options = %+v", ctl)
	}
	// SOCKS took 9050, so the control port must move off it.
	if got := s.ControlEndpoint().String(); got != "127.0.0.1:9051" {
		t.Errorf("ControlEndpoint() = %s, want 127.0.0.1:9051", got)
	}
	if len(s.SocksEndpoints()) != 2 {
		t.Errorf("SocksEndpoints() = %v", s.SocksEndpoints())
	}
}

func TestStartGeneratesFreshPassword(t *testing.T) {
	t.Parallel()

	s, ctrl, _ := newTestSession(t)
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	first := ctrl.controlOptions().Password
	if err := s.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if second := ctrl.controlOptions().Password; second == first {
		t.Error("password reused across runs")
	}
}

func TestConnectAppliesProxy(t *testing.T) {
	t.Parallel()

	s, ctrl, mgr := newTestSession(t)
	w := watch(s)

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctrl.progress(50)
	ctrl.progress(100)
	w.expect(t, Connecting, Connected)

	if len(mgr.set) != 1 {
		t.Fatalf("SetProxy called %d times, want 1", len(mgr.set))
	}
	got := mgr.set[0]
	if len(got) != 2 || got[0].Address.String() != "socks://127.0.0.1:9050" ||
		got[1].Address.String() != "socks://[::1]:9050" || !got[0].Enabled || !got[1].Enabled {
		t.Errorf("SetProxy(%v)", got)
	}

	d, err := s.Dialer()
	if err != nil || d == nil {
		t.Errorf("Dialer() = %v, %v", d, err)
	}
}

func TestRunningWithInaccessibleProxy(t *testing.T) {
	t.Parallel()

	for _, st := range []proxy.State{proxy.Blocked, proxy.Pending, proxy.ServiceFailure} {
		t.Run(st.String(), func(t *testing.T) {
			t.Parallel()

			s, ctrl, mgr := newTestSession(t)
			mgr.state = st
			w := watch(s)

			if err := s.Start(context.Background()); err != nil {
				t.Fatal(err)
			}
			ctrl.progress(100)
			w.expect(t, Connecting, BlockedProxy)

			if sets, _ := mgr.counts(); sets != 0 {
				t.Errorf("SetProxy called %d times", sets)
			}
			if ctrl.State() != process.Running {
				t.Error("tor should keep running")
			}
			if _, err := s.Dialer(); !errors.Is(err, ErrNotConnected) {
				t.Errorf("Dialer() error = %v", err)
			}
		})
	}
}

func TestStallDetection(t *testing.T) {
	t.Parallel()

	s, ctrl, _ := newTestSession(t, WithStallTimeout(50*time.Millisecond))
	w := watch(s)

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.expect(t, Connecting)

	ctrl.progress(10)
	w.expect(t, ConnectingStalled)

	// Unchanged progress counts as a sign of life.
	ctrl.progress(10)
	w.expect(t, Connecting, ConnectingStalled)

	// Progress going backwards is ignored.
	ctrl.progress(5)
	w.none(t, 100*time.Millisecond)
	if s.State() != ConnectingStalled {
		t.Fatalf("State() = %v", s.State())
	}

	ctrl.progress(100)
	w.expect(t, Connecting, Connected)
	w.none(t, 100*time.Millisecond)
}

func TestStopFromConnected(t *testing.T) {
	t.Parallel()

	s, ctrl, mgr := newTestSession(t)
	w := watch(s)

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctrl.progress(100)
	w.expect(t, Connecting, Connected)

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	w.expect(t, Disconnecting, Disconnected)

	if ctrl.stops != 1 {
		t.Errorf("controller stopped %d times", ctrl.stops)
	}
	if _, clears := mgr.counts(); clears != 1 {
		t.Errorf("ClearProxy called %d times, want 1", clears)
	}
}

func TestStopWhileConnectingDisarmsStallTimer(t *testing.T) {
	t.Parallel()

	s, ctrl, _ := newTestSession(t, WithStallTimeout(100*time.Millisecond))
	w := watch(s)

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctrl.progress(10)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.expect(t, Connecting, Disconnecting, Disconnected)
	w.none(t, 200*time.Millisecond)
}

func TestStopWhenDisconnected(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession(t)
	if err := s.Stop(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Stop() error = %v, want ErrInvalidState", err)
	}
}

func TestStartWhileConnecting(t *testing.T) {
	t.Parallel()

	s, ctrl, _ := newTestSession(t)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Start() error = %v, want ErrInvalidState", err)
	}
	if ctrl.starts != 1 {
		t.Errorf("controller started %d times", ctrl.starts)
	}
}

func TestKilledWithoutKillSwitch(t *testing.T) {
	t.Parallel()

	s, ctrl, mgr := newTestSession(t)
	w := watch(s)

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctrl.progress(100)
	w.expect(t, Connecting, Connected)

	ctrl.setState(process.Killed)
	w.expect(t, Disconnected)
	if _, clears := mgr.counts(); clears != 1 {
		t.Errorf("ClearProxy called %d times, want 1", clears)
	}

	// Restart after a crash is allowed.
	if err := s.Start(context.Background()); err != nil {
		t.Errorf("Start() after kill error = %v", err)
	}
}

func TestKillSwitch(t *testing.T) {
	t.Parallel()

	s, ctrl, mgr := newTestSession(t, WithKillSwitch(true))
	w := watch(s)

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctrl.progress(100)
	w.expect(t, Connecting, Connected)

	ctrl.setState(process.Killed)
	w.expect(t, KillSwitchTriggered)
	if _, clears := mgr.counts(); clears != 0 {
		t.Errorf("ClearProxy called %d times while the kill switch holds", clears)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	w.expect(t, Disconnected)
	if _, clears := mgr.counts(); clears != 1 {
		t.Errorf("ClearProxy called %d times after Stop, want 1", clears)
	}
	if ctrl.stops != 0 {
		t.Error("controller Stop should not be called for a dead process")
	}
}

func TestKillSwitchBeforeConnected(t *testing.T) {
	t.Parallel()

	s, ctrl, _ := newTestSession(t, WithKillSwitch(true))
	w := watch(s)

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctrl.progress(30)
	ctrl.setState(process.Killed)
	w.expect(t, Connecting, Disconnected)
}

func TestLaunchFailure(t *testing.T) {
	t.Parallel()

	s, ctrl, mgr := newTestSession(t)
	boom := errors.New("permission denied")
	ctrl.startErr = boom
	w := watch(s)

	err := s.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Start() error = %v, want wrapped launch error", err)
	}
	w.expect(t, Connecting, BlockedProcess)

	if sets, clears := mgr.counts(); sets != 0 || clears != 0 {
		t.Errorf("proxy manager touched: %d sets, %d clears", sets, clears)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("Stop() from BlockedProcess error = %v", err)
	}
	w.expect(t, Disconnected)
}

func TestExtraEntriesAreValidated(t *testing.T) {
	t.Parallel()

	bad := &torrc.FreeformOptions{Lines: []string{"SocksPort 1\nControlPort 2"}}
	s, ctrl, _ := newTestSession(t, WithEntries(bad))

	err := s.Start(context.Background())
	var verr *torrc.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Start() error = %v, want *torrc.ValidationError", err)
	}
	if ctrl.starts != 0 || s.State() != Disconnected {
		t.Errorf("start proceeded: starts %d, state %v", ctrl.starts, s.State())
	}
}

func TestExtraEntriesAreAppended(t *testing.T) {
	t.Parallel()

	extra := &torrc.NodeFilterOptions{StrictNodes: true}
	s, ctrl, _ := newTestSession(t, WithEntries(extra))
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(ctrl.entries) != 3 || ctrl.entries[2] != torrc.Entry(extra) {
		t.Errorf("entries = %v", ctrl.entries)
	}
}

func TestNewIdentity(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	port := uint16(ln.Addr().(*net.TCPAddr).Port) //nolint:gosec // listener port

	received := make(chan string, 4)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			received <- strings.TrimRight(line, "\r\n")
			if _, err := conn.Write([]byte("250 OK\r\n")); err != nil {
				return
			}
		}
	}()

	s, ctrl, _ := newTestSession(t, WithPorts(9050, port))
	if err := s.NewIdentity(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("NewIdentity() before start error = %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.NewIdentity(context.Background()); err != nil {
		t.Fatalf("NewIdentity() error = %v", err)
	}

	password := ctrl.controlOptions().Password
	if got := <-received; got != `AUTHENTICATE "`+password+`"` {
		t.Errorf("first command = %q", got)
	}
	if got := <-received; got != "SIGNAL NEWNYM" {
		t.Errorf("second command = %q", got)
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	if KillSwitchTriggered.String() != "KillSwitchTriggered" || State(-1).String() != "Unknown" {
		t.Error("unexpected state names")
	}
}

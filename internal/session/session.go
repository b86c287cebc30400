package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/torgate/internal/control"
	"github.com/nao1215/torgate/internal/portscan"
	"github.com/nao1215/torgate/internal/process"
	"github.com/nao1215/torgate/internal/proxy"
	"github.com/nao1215/torgate/internal/torrc"
	netproxy "golang.org/x/net/proxy"
)

// Default ports searched from when allocating listeners.
const (
	DefaultSocksPort   uint16 = 9050
	DefaultControlPort uint16 = 9051
)

// DefaultStallTimeout is how long bootstrap progress may stand still.
const DefaultStallTimeout = 30 * time.Second

// Controller runs tor. *process.Process implements it.
type Controller interface {
	Start(entries ...torrc.Entry) error
	Stop(ctx context.Context) error
	State() process.State
	Subscribe(fn func(process.Event)) func()
}

// PortFinder allocates listener ports. *portscan.Scanner implements it.
type PortFinder interface {
	ClosestFreePort(preferred uint16, excluded map[int]struct{}) (uint16, error)
}

var _ Controller = (*process.Process)(nil)

// Session coordinates one tor client with the host's proxy settings.
type Session struct {
	ctrl     Controller
	proxies  proxy.Manager
	ports    PortFinder
	loopback func(port uint16) []netip.AddrPort
	logger   *slog.Logger

	stallTimeout time.Duration
	killSwitch   bool
	socksPort    uint16
	controlPort  uint16
	client       torrc.ClientOptions
	extra        []torrc.Entry
	controlOpts  []control.Option

	mu           sync.Mutex
	state        State
	ctx          context.Context
	lastProgress int
	stall        *time.Timer
	stallGen     int
	socks        []netip.AddrPort
	controlEP    netip.AddrPort
	password     string
	proxyApplied bool

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithKillSwitch keeps the proxy pointed at the dead SOCKS port when tor
// exits unexpectedly, so traffic fails instead of leaking.
func WithKillSwitch(on bool) Option {
	return func(s *Session) {
		s.killSwitch = on
	}
}

// WithStallTimeout sets how long bootstrap progress may stand still before
// the session reports ConnectingStalled.
func WithStallTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.stallTimeout = d
	}
}

// WithPorts sets the preferred SOCKS and control ports.
func WithPorts(socks, control uint16) Option {
	return func(s *Session) {
		s.socksPort = socks
		s.controlPort = control
	}
}

// WithPortFinder replaces the port scanner.
func WithPortFinder(f PortFinder) Option {
	return func(s *Session) {
		s.ports = f
	}
}

// WithLoopback replaces how a port is turned into loopback endpoints.
func WithLoopback(fn func(port uint16) []netip.AddrPort) Option {
	return func(s *Session) {
		s.loopback = fn
	}
}

// WithClientOptions sets the client options template. SocksEndpoints is
// overwritten with the allocated endpoints on every start.
func WithClientOptions(o torrc.ClientOptions) Option {
	return func(s *Session) {
		s.client = o
	}
}

// WithEntries appends user-supplied torrc entries. Any error-severity issue
// they report makes Start fail.
func WithEntries(entries ...torrc.Entry) Option {
	return func(s *Session) {
		s.extra = append(s.extra, entries...)
	}
}

// WithControlOptions sets options for clients returned by Control.
func WithControlOptions(opts ...control.Option) Option {
	return func(s *Session) {
		s.controlOpts = append(s.controlOpts, opts...)
	}
}

// New returns a Disconnected session driving ctrl and applying proxies
// through proxies.
func New(ctrl Controller, proxies proxy.Manager, opts ...Option) *Session {
	s := &Session{
		ctrl:         ctrl,
		proxies:      proxies,
		ports:        portscan.New(),
		loopback:     portscan.LoopbackEndpoints,
		logger:       slog.Default(),
		stallTimeout: DefaultStallTimeout,
		socksPort:    DefaultSocksPort,
		controlPort:  DefaultControlPort,
		client: torrc.ClientOptions{
			ClientOnly:                  true,
			ExternalConnectionKeepAlive: 5 * time.Minute,
		},
		ctx:  context.Background(),
		subs: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	ctrl.Subscribe(s.onProcessEvent)
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SocksEndpoints returns the SOCKS listeners of the current run.
func (s *Session) SocksEndpoints() []netip.AddrPort {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.socks)
}

// ControlEndpoint returns the control listener of the current run.
func (s *Session) ControlEndpoint() netip.AddrPort {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controlEP
}

// Subscribe registers fn for every state change. fn must not block. The
// returned func unsubscribes.
func (s *Session) Subscribe(fn func(State)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Session) notify(st State) {
	s.logger.Info("session state", "state", st)

	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for id := range s.nextID {
		if fn, ok := s.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// setLocked changes the state and reports whether it changed. The caller
// holds s.mu and calls notify after unlocking.
func (s *Session) setLocked(st State) bool {
	if s.state == st {
		return false
	}
	s.state = st
	return true
}

// Start allocates ports, builds the configuration and starts tor. It
// returns once tor is launched; Connected is reported through Subscribe.
// ctx is kept, without its cancellation, for proxy calls made later.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state.busy() {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: start while %s", ErrInvalidState, st)
	}
	if ps := s.ctrl.State(); ps.Live() {
		s.mu.Unlock()
		return fmt.Errorf("%w: tor is %s", ErrInvalidState, ps)
	}

	entries, err := s.buildLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.ctx = context.WithoutCancel(ctx)
	s.lastProgress = 0
	s.setLocked(Connecting)
	s.armStallLocked()
	s.mu.Unlock()
	s.notify(Connecting)

	if err := s.ctrl.Start(entries...); err != nil {
		s.mu.Lock()
		s.disarmStallLocked()
		changed := s.setLocked(BlockedProcess)
		s.mu.Unlock()
		if changed {
			s.notify(BlockedProcess)
		}
		return fmt.Errorf("failed to start tor: %w", err)
	}
	return nil
}

// buildLocked allocates ports and assembles the torrc entries.
func (s *Session) buildLocked() ([]torrc.Entry, error) {
	extraIssues := torrc.Validate(s.extra...)
	if torrc.HasErrors(extraIssues) {
		return nil, &torrc.ValidationError{Issues: extraIssues}
	}

	socksPort, err := s.ports.ClosestFreePort(s.socksPort, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate SOCKS port: %w", err)
	}
	controlPort, err := s.ports.ClosestFreePort(s.controlPort, map[int]struct{}{int(socksPort): {}})
	if err != nil {
		return nil, fmt.Errorf("failed to allocate control port: %w", err)
	}

	client := s.client
	client.SocksEndpoints = s.loopback(socksPort)
	controlEP := netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), controlPort)
	password := rand.Text()
	ctl := &torrc.ControlPortOptions{
		Endpoints: []netip.AddrPort{controlEP},
		Password:  password,
	}

	generated := []torrc.Entry{&client, ctl}
	for _, issue := range torrc.Validate(generated...) {
		s.logger.Warn("generated torrc issue", "severity", issue.Severity, "message", issue.Message)
	}
	for _, issue := range extraIssues {
		s.logger.Warn("torrc issue", "severity", issue.Severity, "message", issue.Message)
	}

	s.socks = client.SocksEndpoints
	s.controlEP = controlEP
	s.password = password
	s.logger.Debug("ports allocated", "socks", s.socks, "control", controlEP)

	return append(generated, s.extra...), nil
}

// armStallLocked (re)starts the stall timer. Timers from earlier arms are
// invalidated through stallGen.
func (s *Session) armStallLocked() {
	if s.stall != nil {
		s.stall.Stop()
	}
	s.stallGen++
	gen := s.stallGen
	s.stall = time.AfterFunc(s.stallTimeout, func() {
		s.onStall(gen)
	})
}

func (s *Session) disarmStallLocked() {
	if s.stall != nil {
		s.stall.Stop()
		s.stall = nil
	}
	s.stallGen++
}

func (s *Session) onStall(gen int) {
	s.mu.Lock()
	if gen != s.stallGen || s.state != Connecting {
		s.mu.Unlock()
		return
	}
	s.setLocked(ConnectingStalled)
	progress := s.lastProgress
	s.mu.Unlock()

	s.logger.Warn("bootstrap stalled", "progress", progress, "timeout", s.stallTimeout)
	s.notify(ConnectingStalled)
}

func (s *Session) onProcessEvent(ev process.Event) {
	switch ev.Kind {
	case process.ProgressChanged:
		s.onProgress(ev.Progress)
	case process.StateChanged:
		switch ev.State {
		case process.Running:
			s.onRunning()
		case process.Stopped:
			s.onStopped()
		case process.Killed:
			s.onKilled()
		}
	}
}

func (s *Session) onProgress(progress int) {
	s.mu.Lock()
	if !s.state.connecting() || progress < s.lastProgress {
		s.mu.Unlock()
		return
	}
	s.lastProgress = progress
	if progress == 100 {
		s.disarmStallLocked()
	} else {
		s.armStallLocked()
	}
	changed := s.setLocked(Connecting)
	s.mu.Unlock()

	if changed {
		s.notify(Connecting)
	}
}

func (s *Session) onRunning() {
	s.mu.Lock()
	if !s.state.connecting() {
		s.mu.Unlock()
		return
	}
	s.disarmStallLocked()
	ctx := s.ctx
	socks := slices.Clone(s.socks)
	s.mu.Unlock()

	next := s.applyProxy(ctx, socks)

	s.mu.Lock()
	if next == Connected {
		s.proxyApplied = true
	}
	changed := s.state.connecting() && s.setLocked(next)
	s.mu.Unlock()
	if changed {
		s.notify(next)
	}
}

func (s *Session) applyProxy(ctx context.Context, socks []netip.AddrPort) State {
	st, err := s.proxies.GetState(ctx)
	if err != nil {
		s.logger.Warn("proxy state unavailable", "error", err)
		return BlockedProxy
	}
	if st != proxy.Accessible {
		s.logger.Warn("proxy settings not accessible", "state", st)
		return BlockedProxy
	}

	list := make([]proxy.NetworkProxy, 0, len(socks))
	for _, ep := range socks {
		list = append(list, proxy.SOCKS(ep))
	}
	if err := s.proxies.SetProxy(ctx, list...); err != nil {
		s.logger.Warn("failed to apply proxy", "error", err)
		return BlockedProxy
	}
	return Connected
}

func (s *Session) onStopped() {
	s.mu.Lock()
	s.disarmStallLocked()
	s.proxyApplied = false
	ctx := s.ctx
	changed := s.setLocked(Disconnected)
	s.mu.Unlock()

	if changed {
		s.notify(Disconnected)
	}
	s.clearProxy(ctx)
}

func (s *Session) onKilled() {
	s.mu.Lock()
	s.disarmStallLocked()
	ctx := s.ctx
	if s.killSwitch && s.proxyApplied {
		changed := s.setLocked(KillSwitchTriggered)
		s.mu.Unlock()
		s.logger.Error("tor exited unexpectedly, kill switch holds the proxy")
		if changed {
			s.notify(KillSwitchTriggered)
		}
		return
	}
	s.proxyApplied = false
	changed := s.setLocked(Disconnected)
	s.mu.Unlock()

	s.logger.Error("tor exited unexpectedly")
	if changed {
		s.notify(Disconnected)
	}
	s.clearProxy(ctx)
}

func (s *Session) clearProxy(ctx context.Context) {
	if err := s.proxies.ClearProxy(ctx); err != nil {
		s.logger.Warn("failed to clear proxy", "error", err)
	}
}

// Stop stops tor. If tor already died the session is reset to Disconnected
// directly, releasing a proxy held by the kill switch.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	ps := s.ctrl.State()
	if ps == process.Killed || s.state == KillSwitchTriggered || s.state == BlockedProcess {
		s.disarmStallLocked()
		held := s.proxyApplied
		s.proxyApplied = false
		changed := s.setLocked(Disconnected)
		s.mu.Unlock()
		if changed {
			s.notify(Disconnected)
		}
		if held {
			s.clearProxy(ctx)
		}
		return nil
	}
	if !ps.Live() {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: stop while %s", ErrInvalidState, st)
	}
	s.disarmStallLocked()
	s.setLocked(Disconnecting)
	s.mu.Unlock()
	s.notify(Disconnecting)

	if err := s.ctrl.Stop(ctx); err != nil && !errors.Is(err, process.ErrNotRunning) {
		return fmt.Errorf("failed to stop tor: %w", err)
	}
	return nil
}

// Control dials the control port of the running tor and authenticates with
// the session password. The caller closes the client.
func (s *Session) Control(ctx context.Context) (*control.Client, error) {
	s.mu.Lock()
	ep, password := s.controlEP, s.password
	s.mu.Unlock()

	if !s.ctrl.State().Live() || !ep.IsValid() {
		return nil, ErrNotConnected
	}

	opts := append([]control.Option{control.WithLogger(s.logger)}, s.controlOpts...)
	c, err := control.Dial(ctx, ep.String(), opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Authenticate(ctx, password); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("control authentication failed: %w", err)
	}
	return c, nil
}

// NewIdentity asks tor for new circuits (SIGNAL NEWNYM).
func (s *Session) NewIdentity(ctx context.Context) error {
	c, err := s.Control(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Signal(ctx, "NEWNYM")
}

// Dialer returns a SOCKS5 dialer through the first SOCKS endpoint.
func (s *Session) Dialer() (netproxy.Dialer, error) {
	s.mu.Lock()
	st := s.state
	var ep netip.AddrPort
	if len(s.socks) > 0 {
		ep = s.socks[0]
	}
	s.mu.Unlock()

	if st != Connected || !ep.IsValid() {
		return nil, ErrNotConnected
	}
	return netproxy.SOCKS5("tcp", ep.String(), nil, netproxy.Direct)
}

package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nao1215/torgate/internal/torrc"
	"golang.org/x/sync/errgroup"
)

// DefaultGracePeriod is how long Stop waits after interrupting tor.
const DefaultGracePeriod = 10 * time.Second

// killWait bounds the wait for exit after a kill.
const killWait = 5 * time.Second

// maxLineSize bounds a single line of tor output.
const maxLineSize = 1 << 20

// Process controls one tor executable. It can be started again after it
// stopped, was killed, or failed to launch.
type Process struct {
	path     string
	launcher Launcher
	logger   *slog.Logger
	grace    time.Duration
	killWait time.Duration
	tempDir  string

	mu         sync.Mutex
	state      State
	version    string
	progress   int
	handle     Handle
	configPath string
	stopping   bool
	exited     chan struct{}

	subMu  sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

// Option configures a Process.
type Option func(*Process)

// WithLauncher replaces the os/exec launcher.
func WithLauncher(l Launcher) Option {
	return func(p *Process) {
		p.launcher = l
	}
}

// WithLogger sets the logger that receives tor's output.
func WithLogger(l *slog.Logger) Option {
	return func(p *Process) {
		p.logger = l
	}
}

// WithGracePeriod sets how long Stop waits before killing.
func WithGracePeriod(d time.Duration) Option {
	return func(p *Process) {
		p.grace = d
	}
}

// WithTempDir sets where the generated torrc file is written.
// The default is os.TempDir().
func WithTempDir(dir string) Option {
	return func(p *Process) {
		p.tempDir = dir
	}
}

// New returns a stopped Process for the tor executable at path.
func New(path string, opts ...Option) *Process {
	p := &Process{
		path:     path,
		launcher: ExecLauncher{},
		logger:   slog.Default(),
		grace:    DefaultGracePeriod,
		killWait: killWait,
		subs:     make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Path returns the executable path.
func (p *Process) Path() string {
	return p.path
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Version returns the tor version, or "" until tor reported it.
func (p *Process) Version() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

// BootstrapProgress returns the last reported bootstrap percentage.
func (p *Process) BootstrapProgress() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// Subscribe registers fn for every Event. fn runs on the goroutine that
// caused the change and must not block. The returned func unsubscribes.
func (p *Process) Subscribe(fn func(Event)) func() {
	p.subMu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.subMu.Unlock()

	return func() {
		p.subMu.Lock()
		delete(p.subs, id)
		p.subMu.Unlock()
	}
}

func (p *Process) emit(ev Event) {
	p.subMu.Lock()
	fns := make([]func(Event), 0, len(p.subs))
	for id := range p.nextID {
		if fn, ok := p.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	p.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Start writes entries to a temporary torrc, launches tor with it and
// returns once the process exists. Progress is reported through events.
// With no entries tor is launched without "-f".
func (p *Process) Start(entries ...torrc.Entry) error {
	p.mu.Lock()
	if p.state.Live() || p.handle != nil {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}

	var args []string
	configPath := ""
	if len(entries) > 0 {
		path, err := p.writeConfig(entries)
		if err != nil {
			p.mu.Unlock()
			return err
		}
		configPath = path
		args = []string{"-f", path}
	}

	h, err := p.launcher.Launch(p.path, args...)
	if err != nil {
		p.state = Blocked
		p.mu.Unlock()
		removeConfig(p.logger, configPath)
		p.logger.Error("tor launch failed", "path", p.path, "error", err)
		p.emit(Event{Kind: StateChanged, State: Blocked})
		return fmt.Errorf("%w: %s: %w", ErrLaunch, p.path, err)
	}

	exited := make(chan struct{})
	p.handle = h
	p.exited = exited
	p.configPath = configPath
	p.stopping = false
	p.version = ""
	p.progress = 0
	p.state = Started
	p.mu.Unlock()

	p.logger.Info("tor started", "path", p.path, "torrc", configPath)
	p.emit(Event{Kind: StateChanged, State: Started})

	go p.run(h, exited)
	return nil
}

func (p *Process) writeConfig(entries []torrc.Entry) (string, error) {
	f, err := os.CreateTemp(p.tempDir, "torrc-*")
	if err != nil {
		return "", fmt.Errorf("failed to create torrc: %w", err)
	}
	path := f.Name()

	werr := torrc.Write(f, entries...)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write torrc: %w", err)
	}
	return path, nil
}

func removeConfig(logger *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to remove torrc", "path", path, "error", err)
	}
}

// run pumps both output streams, then waits for the process to exit.
func (p *Process) run(h Handle, exited chan struct{}) {
	defer close(exited)

	var g errgroup.Group
	g.Go(func() error {
		return p.consume(h)
	})
	g.Go(func() error {
		return p.forwardStderr(h)
	})
	if err := g.Wait(); err != nil {
		p.logger.Debug("tor output stream ended", "error", err)
	}
	waitErr := h.Wait()

	p.mu.Lock()
	if p.exited != exited {
		// Stop gave up on this process; its state is no longer tracked.
		p.mu.Unlock()
		p.logger.Warn("abandoned tor process exited", "error", waitErr)
		return
	}
	unexpected := !p.stopping
	if unexpected {
		p.state = Killed
	}
	p.mu.Unlock()

	if !unexpected {
		return
	}
	p.logger.Warn("tor exited unexpectedly", "error", waitErr)
	p.emit(Event{Kind: StateChanged, State: Killed})
	p.release()
}

func (p *Process) consume(h Handle) error {
	sc := bufio.NewScanner(h.Stdout())
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)
	for sc.Scan() {
		p.handleLine(sc.Text())
	}
	return sc.Err()
}

func (p *Process) forwardStderr(h Handle) error {
	sc := bufio.NewScanner(h.Stderr())
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)
	for sc.Scan() {
		p.logger.Warn(sc.Text(), "stream", "stderr")
	}
	return sc.Err()
}

func (p *Process) handleLine(line string) {
	p.mu.Lock()
	haveVersion := p.version != ""
	p.mu.Unlock()

	if !haveVersion {
		if v, ok := parseVersion(line); ok {
			p.mu.Lock()
			p.version = v
			p.mu.Unlock()
			p.logger.Info("tor version", "version", v)
			p.emit(Event{Kind: VersionDetected, Version: v})
			return
		}
	}

	ll, ok := parseLogLine(line)
	if !ok {
		p.logger.Debug(line, "source", "tor")
		return
	}
	b, ok := parseBootstrap(ll.message)
	if !ok {
		p.logger.Log(context.Background(), slogLevel(ll.level), ll.message, "source", "tor")
		return
	}
	p.logger.Info("tor bootstrap", "progress", b.progress, "tag", b.tag, "summary", b.summary)

	p.mu.Lock()
	p.progress = b.progress
	p.mu.Unlock()
	p.emit(Event{Kind: ProgressChanged, Progress: b.progress, Tag: b.tag, Summary: b.summary})

	next := Bootstrapping
	if b.progress == 100 {
		next = Running
	}
	p.mu.Lock()
	changed := p.state.Live() && !p.stopping && p.state != next
	if changed {
		p.state = next
	}
	p.mu.Unlock()
	if changed {
		p.emit(Event{Kind: StateChanged, State: next})
	}
}

// Stop interrupts tor, waits for the grace period or ctx, and kills it if
// it is still alive. The temporary torrc is removed in every case. If tor
// has not exited shortly after the kill, it is abandoned and ErrKillFailed
// is returned with the state set to Stopped.
func (p *Process) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.state.Live() || p.handle == nil {
		p.mu.Unlock()
		return ErrNotRunning
	}
	p.stopping = true
	h := p.handle
	exited := p.exited
	p.mu.Unlock()

	var stopErr error
	if !p.interrupt(ctx, h, exited) {
		p.logger.Warn("tor did not stop gracefully, killing", "grace", p.grace)
		killErr := h.Kill()
		if killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			p.logger.Warn("failed to kill tor", "error", killErr)
		}
		select {
		case <-exited:
		case <-time.After(p.killWait):
			p.logger.Error("tor did not exit after kill, abandoning it", "wait", p.killWait, "error", killErr)
			stopErr = fmt.Errorf("%w: %w", ErrKillFailed, errors.Join(killErr, os.ErrDeadlineExceeded))
		}
	}

	p.release()
	p.mu.Lock()
	p.state = Stopped
	p.stopping = false
	p.mu.Unlock()

	p.logger.Info("tor stopped")
	p.emit(Event{Kind: StateChanged, State: Stopped})
	return stopErr
}

// interrupt reports whether the process exited on its own within the grace
// period.
func (p *Process) interrupt(ctx context.Context, h Handle, exited <-chan struct{}) bool {
	if err := h.Interrupt(); err != nil {
		p.logger.Debug("interrupt unsupported, killing", "error", err)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, p.grace)
	defer cancel()

	select {
	case <-exited:
		return true
	case <-ctx.Done():
		return false
	}
}

// release drops the handle, resets Version and removes the torrc file.
func (p *Process) release() {
	p.mu.Lock()
	path := p.configPath
	p.handle = nil
	p.exited = nil
	p.configPath = ""
	p.version = ""
	p.mu.Unlock()

	removeConfig(p.logger, path)
}

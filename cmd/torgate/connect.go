package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/torgate/internal/config"
	"github.com/nao1215/torgate/internal/journal"
	"github.com/nao1215/torgate/internal/locator"
	"github.com/nao1215/torgate/internal/process"
	"github.com/nao1215/torgate/internal/proxy"
	"github.com/nao1215/torgate/internal/session"
	"github.com/nao1215/torgate/internal/tor"
)

// stopSlack is added to the grace period when bounding a shutdown, so that
// the forced kill after the grace period still fits.
const stopSlack = 5 * time.Second

// NewConnectCmd creates the connect command.
func NewConnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Start tor and route the session through it until interrupted",
		Long: `Connect locates tor, starts it with a generated torrc on the closest free
loopback ports and waits for bootstrap. Once tor reports 100% the SOCKS
endpoints are applied as the session proxy and checked with a SOCKS
handshake. Ctrl-C (or SIGTERM) stops tor and restores the previous proxy.

With --kill-switch the proxy keeps pointing at the dead SOCKS port when tor
exits unexpectedly, so traffic fails instead of bypassing tor.

Examples:
  torgate connect
  torgate connect --kill-switch --verify
  torgate connect --socks-port 9150 --new-identity-every 10m
  TORGATE_TOR_DIR=/opt/tor-browser/Browser/TorBrowser/Tor torgate connect`,
		Args: cobra.NoArgs,
		RunE: runConnectCmd,
	}
	addSessionFlags(cmd)
	cmd.Flags().Bool("kill-switch", false, "Keep the proxy on tor's port if tor dies")
	cmd.Flags().Duration("stall-timeout", config.DefaultStallTimeout, "Bootstrap time without progress before reporting a stall")
	cmd.Flags().Bool("verify", false, "Check through check.torproject.org that traffic leaves via tor")
	cmd.Flags().Bool("no-journal", false, "Do not record the session")
	cmd.Flags().String("journal-dir", "", "Session journal directory (default: XDG state directory)")
	cmd.Flags().Duration("for", 0, "Disconnect after this long (0: until interrupted)")
	cmd.Flags().Duration("new-identity-every", 0, "Request new circuits at this interval (0: never)")
	return cmd
}

func runConnectCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applySessionFlags(cmd, cfg); err != nil {
		return err
	}
	runFor, err := cmd.Flags().GetDuration("for")
	if err != nil {
		return err
	}
	rotate, err := cmd.Flags().GetDuration("new-identity-every")
	if err != nil {
		return err
	}

	logger := newLogger(cmd, cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	torPath, err := resolveTor(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDirectory(), 0o700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	extra, err := cfg.Entries()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	proc := process.New(torPath,
		process.WithLogger(logger),
		process.WithGracePeriod(cfg.GracePeriod),
	)
	proxies := proxy.NewAdapterManager(
		[]proxy.Adapter{proxy.NewMemoryAdapter("session")},
		proxy.WithManagerLogger(logger),
	)
	sess := session.New(proc, proxies,
		session.WithLogger(logger),
		session.WithKillSwitch(cfg.KillSwitch),
		session.WithStallTimeout(cfg.StallTimeout),
		session.WithPorts(cfg.SocksPort, cfg.ControlPort),
		session.WithClientOptions(cfg.ClientOptions()),
		session.WithEntries(extra...),
	)

	c := &connection{
		cfg:     cfg,
		out:     cmd.OutOrStdout(),
		logger:  logger,
		proc:    proc,
		sess:    sess,
		torPath: torPath,
		runFor:  runFor,
		rotate:  rotate,
	}
	if !cfg.NoJournal {
		if err := c.openJournal(ctx); err != nil {
			logger.Warn("session journal disabled", "error", err)
		}
	}
	defer c.closeJournal()

	return c.run(ctx)
}

// resolveTor maps the configured executable to a path. Absolute paths and
// paths with a separator are taken as is.
func resolveTor(cfg *config.Config) (string, error) {
	if strings.ContainsRune(cfg.Executable, os.PathSeparator) || strings.ContainsRune(cfg.Executable, '/') {
		if _, err := os.Stat(cfg.Executable); err != nil {
			return "", fmt.Errorf("tor executable: %w", err)
		}
		return cfg.Executable, nil
	}
	path, ok := locator.New(locator.WithOverrideEnv(cfg.OverrideEnv)).First(cfg.Executable)
	if !ok {
		return "", fmt.Errorf("%s not found: install tor or set %s to its directory", cfg.Executable, cfg.OverrideEnv)
	}
	return path, nil
}

// connection drives one session from start to shutdown.
type connection struct {
	cfg     *config.Config
	out     io.Writer
	logger  *slog.Logger
	proc    *process.Process
	sess    *session.Session
	torPath string
	runFor  time.Duration
	rotate  time.Duration

	journal *journal.Journal
	record  *journal.Session
	rec     *journal.Recorder

	// outcome overrides the final state stored in the journal.
	outcome string
}

func (c *connection) openJournal(ctx context.Context) error {
	j, err := journal.Open(c.cfg.JournalDirectory(), journal.DefaultOptions())
	if err != nil {
		return err
	}
	rec, err := j.Begin(ctx, c.torPath)
	if err != nil {
		_ = j.Close()
		return err
	}
	c.journal, c.record = j, rec
	c.rec = j.NewRecorder(rec.ID, c.logger)
	c.logger.Debug("session journal", "path", j.Path(), "session", rec.ID)
	return nil
}

func (c *connection) closeJournal() {
	if c.journal == nil {
		return
	}
	c.rec.Close()

	final := c.outcome
	if final == "" {
		final = c.sess.State().String()
		if c.proc.State() == process.Killed {
			final = process.Killed.String()
		}
	}
	ctx := context.Background()
	if err := c.journal.End(ctx, c.record.ID, final); err != nil {
		c.logger.Warn("failed to close session record", "error", err)
	}
	_ = c.journal.Close()
}

func (c *connection) withJournal(fn func(ctx context.Context, j *journal.Journal, id string) error) {
	if c.journal == nil {
		return
	}
	if err := fn(context.Background(), c.journal, c.record.ID); err != nil {
		c.logger.Warn("failed to update session record", "error", err)
	}
}

func (c *connection) run(ctx context.Context) error {
	states := make(chan session.State, 32)
	unsubscribe := c.sess.Subscribe(func(st session.State) {
		if c.rec != nil {
			_ = c.rec.State(st.String())
		}
		select {
		case states <- st:
		default:
			c.logger.Debug("state update dropped", "state", st)
		}
	})
	defer unsubscribe()
	unsubscribeProc := c.proc.Subscribe(func(ev process.Event) {
		if ev.Kind == process.ProgressChanged && c.rec != nil {
			c.rec.Progress(ev.Progress)
		}
	})
	defer unsubscribeProc()

	fmt.Fprintf(c.out, "Starting %s\n", c.torPath)
	if err := c.sess.Start(ctx); err != nil {
		c.outcome = c.sess.State().String()
		return err
	}
	socks := c.sess.SocksEndpoints()
	addrs := make([]string, len(socks))
	for i, ep := range socks {
		addrs[i] = ep.String()
	}
	c.withJournal(func(ctx context.Context, j *journal.Journal, id string) error {
		return j.SetEndpoints(ctx, id, strings.Join(addrs, ","), c.sess.ControlEndpoint().String())
	})

	var deadline <-chan time.Time
	if c.runFor > 0 {
		t := time.NewTimer(c.runFor)
		defer t.Stop()
		deadline = t.C
	}
	var rotateTick <-chan time.Time
	if c.rotate > 0 {
		t := time.NewTicker(c.rotate)
		defer t.Stop()
		rotateTick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out, "Interrupted, disconnecting")
			return c.shutdown()
		case <-deadline:
			return c.shutdown()
		case <-rotateTick:
			if c.sess.State() != session.Connected {
				continue
			}
			if err := c.sess.NewIdentity(ctx); err != nil {
				c.logger.Warn("new identity failed", "error", err)
			} else {
				c.logger.Info("requested new circuits")
			}
		case st := <-states:
			switch st {
			case session.Connected:
				c.connected(ctx)
			case session.ConnectingStalled:
				fmt.Fprintf(c.out, "Bootstrap stalled at %d%%, still waiting\n", c.proc.BootstrapProgress())
			case session.BlockedProxy:
				c.outcome = st.String()
				_ = c.shutdown()
				return errors.New("tor is running but the proxy settings could not be applied")
			case session.KillSwitchTriggered:
				c.outcome = st.String()
				fmt.Fprintln(c.out, "tor exited unexpectedly; kill switch keeps traffic blocked until you interrupt torgate")
			case session.Disconnected:
				if c.proc.State() == process.Killed {
					return errors.New("tor exited unexpectedly")
				}
			}
		}
	}
}

func (c *connection) connected(ctx context.Context) {
	socks := c.sess.SocksEndpoints()
	version := c.proc.Version()
	fmt.Fprintf(c.out, "Connected (tor %s)\n", version)
	for _, ep := range socks {
		fmt.Fprintf(c.out, "  SOCKS5   socks5h://%s\n", ep)
	}
	fmt.Fprintf(c.out, "  control  %s\n", c.sess.ControlEndpoint())

	c.withJournal(func(ctx context.Context, j *journal.Journal, id string) error {
		return j.SetTorVersion(ctx, id, version)
	})

	for _, ep := range socks {
		if st := tor.Probe(ctx, ep.String(), 0); st != tor.StatusOK {
			c.logger.Warn("SOCKS endpoint check failed", "endpoint", ep, "status", st)
		}
	}

	if !c.cfg.VerifyExit || len(socks) == 0 {
		return
	}
	v, err := tor.NewVerifier(socks[0].String())
	if err != nil {
		c.logger.Warn("exit verification unavailable", "error", err)
		return
	}
	info, err := v.Verify(ctx)
	switch {
	case errors.Is(err, tor.ErrNotTorExit):
		fmt.Fprintf(c.out, "WARNING: traffic does not leave through tor (seen as %s)\n", info.IP)
	case err != nil:
		c.logger.Warn("exit verification failed", "error", err)
		return
	default:
		fmt.Fprintf(c.out, "Verified tor exit %s\n", info.IP)
	}
	c.withJournal(func(ctx context.Context, j *journal.Journal, id string) error {
		return j.SetExitIP(ctx, id, info.IP)
	})
}

func (c *connection) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.GracePeriod+stopSlack)
	defer cancel()

	err := c.sess.Stop(ctx)
	if errors.Is(err, session.ErrInvalidState) {
		return nil
	}
	if err != nil {
		return err
	}
	if c.outcome == "" {
		c.outcome = session.Disconnected.String()
	}
	fmt.Fprintln(c.out, "Disconnected")
	return nil
}

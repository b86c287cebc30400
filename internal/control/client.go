package control

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/textproto"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultTimeout bounds a single exchange.
const DefaultTimeout = 30 * time.Second

// Client is a connection to tor's control port.
type Client struct {
	conn    net.Conn
	r       *textproto.Reader
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-exchange timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger for sent commands.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// Dial connects to the control port at addr.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to control port %s: %w", addr, err)
	}
	return NewClient(conn, opts...), nil
}

// NewClient wraps an established connection. The Client owns conn.
func NewClient(conn net.Conn, opts ...Option) *Client {
	c := &Client{
		conn:    conn,
		r:       textproto.NewReader(bufio.NewReader(conn)),
		sem:     semaphore.NewWeighted(1),
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close closes the connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Send writes command and reads the complete reply. A status of 400 or
// above is returned as both the Message and a *ReplyError.
func (c *Client) Send(ctx context.Context, command string) (*Message, error) {
	if strings.ContainsAny(command, "\r\n") {
		return nil, ErrInvalidCommand
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	if c.isClosed() {
		return nil, ErrClosed
	}

	keyword, _, _ := strings.Cut(command, " ")
	msg, err := c.exchange(ctx, command)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("control reply", "command", keyword, "status", msg.Status)
	if msg.Status >= 400 {
		return msg, &ReplyError{Command: keyword, Status: msg.Status, Message: msg.StatusMessage}
	}
	return msg, nil
}

// exchange runs one command/reply pair under a connection deadline. The
// deadline is pulled in when ctx is cancelled, which unblocks the read.
func (c *Client) exchange(ctx context.Context, command string) (*Message, error) {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, c.fail(err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := c.conn.Write([]byte(command + "\r\n")); err != nil {
		return nil, c.fail(c.classify(ctx, err))
	}
	msg, inReply, err := readReply(c.r)
	if err != nil {
		// A malformed opening line is a complete, if useless, reply. One
		// further in leaves the rest of the reply queued for the next command.
		if errors.Is(err, ErrMalformedReply) && !inReply {
			return nil, err
		}
		return nil, c.fail(c.classify(ctx, err))
	}
	return msg, nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

// fail closes the connection after an I/O error, since a partly read reply
// leaves the stream out of sync.
func (c *Client) fail(err error) error {
	_ = c.Close()
	return err
}

// Authenticate sends AUTHENTICATE with a quoted password. An empty password
// authenticates against a control port without authentication.
func (c *Client) Authenticate(ctx context.Context, password string) error {
	cmd := "AUTHENTICATE"
	if password != "" {
		cmd += " " + quote(password)
	}
	_, err := c.Send(ctx, cmd)
	return err
}

// AuthenticateCookie sends AUTHENTICATE with the contents of the cookie file.
func (c *Client) AuthenticateCookie(ctx context.Context, cookie []byte) error {
	_, err := c.Send(ctx, "AUTHENTICATE "+hex.EncodeToString(cookie))
	return err
}

// GetInfo asks for one or more keys and returns their values. Multi-line
// values keep their line breaks.
func (c *Client) GetInfo(ctx context.Context, keys ...string) (map[string]string, error) {
	if len(keys) == 0 {
		return map[string]string{}, nil
	}
	msg, err := c.Send(ctx, "GETINFO "+strings.Join(keys, " "))
	if err != nil {
		return nil, err
	}
	return parseKeyValues(msg.Lines(), keys), nil
}

// Signal sends SIGNAL name, e.g. NEWNYM or RELOAD.
func (c *Client) Signal(ctx context.Context, name string) error {
	_, err := c.Send(ctx, "SIGNAL "+name)
	return err
}

// TakeOwnership makes tor exit when this connection closes.
func (c *Client) TakeOwnership(ctx context.Context) error {
	_, err := c.Send(ctx, "TAKEOWNERSHIP")
	return err
}

// Version returns tor's version number without the trailing build details.
func (c *Client) Version(ctx context.Context) (string, error) {
	info, err := c.GetInfo(ctx, "version")
	if err != nil {
		return "", err
	}
	v, _, _ := strings.Cut(strings.TrimSpace(info["version"]), " ")
	if v == "" {
		return "", fmt.Errorf("%w: empty version", ErrMalformedReply)
	}
	return v, nil
}

// RequireVersion returns ErrVersionTooOld when tor is older than minimum.
func (c *Client) RequireVersion(ctx context.Context, minimum string) error {
	v, err := c.Version(ctx)
	if err != nil {
		return err
	}
	if CompareVersions(v, minimum) < 0 {
		return fmt.Errorf("%w: %s < %s", ErrVersionTooOld, v, minimum)
	}
	return nil
}

// ProtocolInfo is the reply to PROTOCOLINFO.
type ProtocolInfo struct {
	AuthMethods []string
	CookieFile  string
	TorVersion  string
}

// ProtocolInfo asks which authentication methods the control port accepts.
// It may be sent before authenticating.
func (c *Client) ProtocolInfo(ctx context.Context) (*ProtocolInfo, error) {
	msg, err := c.Send(ctx, "PROTOCOLINFO 1")
	if err != nil {
		return nil, err
	}
	return parseProtocolInfo(msg.Lines()), nil
}

func parseProtocolInfo(lines []string) *ProtocolInfo {
	pi := &ProtocolInfo{}
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "AUTH "):
			for _, field := range strings.Fields(strings.TrimPrefix(line, "AUTH ")) {
				if methods, ok := strings.CutPrefix(field, "METHODS="); ok {
					pi.AuthMethods = strings.Split(methods, ",")
				}
			}
			if _, rest, ok := strings.Cut(line, "COOKIEFILE="); ok {
				pi.CookieFile = unquote(rest)
			}
		case strings.HasPrefix(line, "VERSION "):
			if _, rest, ok := strings.Cut(line, "Tor="); ok {
				pi.TorVersion = unquote(rest)
			}
		}
	}
	return pi
}

func parseKeyValues(lines, keys []string) map[string]string {
	wanted := make(map[string]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}

	out := make(map[string]string, len(keys))
	current := ""
	multi := false
	for _, line := range lines {
		if k, v, ok := strings.Cut(line, "="); ok && wanted[k] {
			current, multi = k, v == ""
			out[k] = v
			continue
		}
		if current == "" || !multi {
			continue
		}
		if out[current] != "" {
			out[current] += "\n"
		}
		out[current] += line
	}
	return out
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

// unquote reads a leading quoted string, or the first field when unquoted.
func unquote(s string) string {
	if !strings.HasPrefix(s, `"`) {
		v, _, _ := strings.Cut(s, " ")
		return v
	}
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			}
		case '"':
			return b.String()
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

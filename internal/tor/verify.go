package tor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultCheckURL answers whether the caller reached it through tor.
const DefaultCheckURL = "https://check.torproject.org/api/ip"

// DefaultVerifyTimeout bounds one verification request. Circuits built
// right after bootstrap can be slow.
const DefaultVerifyTimeout = 60 * time.Second

// maxCheckBody caps the check service reply.
const maxCheckBody = 64 << 10

// ExitInfo is the check service's view of the request.
type ExitInfo struct {
	IsTor bool   `json:"IsTor"`
	IP    string `json:"IP"`
}

// Verifier asks a check service, through a SOCKS endpoint, whether traffic
// leaves through a tor exit.
type Verifier struct {
	socksAddr string
	checkURL  string
	timeout   time.Duration
	client    *http.Client
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithCheckURL overrides DefaultCheckURL.
func WithCheckURL(u string) VerifierOption {
	return func(v *Verifier) {
		v.checkURL = u
	}
}

// WithVerifyTimeout overrides DefaultVerifyTimeout.
func WithVerifyTimeout(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.timeout = d
	}
}

// WithHTTPClient replaces the tor-routed client, e.g. for tests.
func WithHTTPClient(c *http.Client) VerifierOption {
	return func(v *Verifier) {
		v.client = c
	}
}

// NewVerifier returns a Verifier that routes through socksAddr ("host:port").
func NewVerifier(socksAddr string, opts ...VerifierOption) (*Verifier, error) {
	v := &Verifier{
		socksAddr: socksAddr,
		checkURL:  DefaultCheckURL,
		timeout:   DefaultVerifyTimeout,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.client != nil {
		return v, nil
	}

	cfg, err := tornago.NewClientConfig(
		tornago.WithClientSocksAddr(socksAddr),
		tornago.WithClientDialTimeout(v.timeout),
		tornago.WithClientRequestTimeout(v.timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to configure tor client for %s: %w", socksAddr, err)
	}
	client, err := tornago.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tor client for %s: %w", socksAddr, err)
	}
	v.client = client.HTTP()
	return v, nil
}

// Verify fetches the check URL. It returns ErrNotTorExit, together with the
// reported address, when the service did not see a tor exit.
func (v *Verifier) Verify(ctx context.Context) (*ExitInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.checkURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build check request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, classifyRequestError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("check service returned %s", resp.Status)
	}
	var info ExitInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxCheckBody)).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode check reply: %w", err)
	}
	if !info.IsTor {
		return &info, fmt.Errorf("%w: exit address %s", ErrNotTorExit, info.IP)
	}
	return &info, nil
}

func classifyRequestError(err error) error {
	var torErr *tornago.TornagoError
	if errors.As(err, &torErr) {
		switch torErr.Kind {
		case tornago.ErrTimeout:
			return fmt.Errorf("%w: %w", ErrProxyTimeout, err)
		case tornago.ErrSocksDialFailed:
			return fmt.Errorf("%w: %w", ErrProxyCannotConnect, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrProxyTimeout, err)
	}
	return fmt.Errorf("check request failed: %w", err)
}

package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// MaskValue replaces sensitive values.
const MaskValue = "***REDACTED***"

// sensitiveKeys are attribute keys that are always masked.
var sensitiveKeys = map[string]bool{
	"password":                true,
	"control_password":        true,
	"hashed_control_password": true,
	"hashedcontrolpassword":   true,
	"cookie":                  true,
	"auth_cookie":             true,
	"proxy-authorization":     true,
	"authorization":           true,
}

// sensitiveKeywords mask any key that contains them.
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "cookie", "credential",
}

// sensitivePatterns mask string values regardless of key.
var sensitivePatterns = []*regexp.Regexp{
	// HashedControlPassword value: 16: + salt(16) + indicator(2) + digest(40)
	regexp.MustCompile(`(?i)16:[0-9a-f]{58}`),

	// AUTHENTICATE command with a quoted password or hex cookie
	regexp.MustCompile(`(?i)^\s*AUTHENTICATE\s+\S+`),

	// Bridge lines with transport credentials
	regexp.MustCompile(`(?i)\b(cert|password|shared-secret)=\S+`),

	// Private key markers
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),

	// Onion service v3 secret key file header
	regexp.MustCompile(`== ed25519v1-secret:`),
}

// SecureHandler masks sensitive attributes before passing records on.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler wraps handler. A nil handler means slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled implements slog.Handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle implements slog.Handler. The message itself is masked too, since
// tor output lines are logged as messages.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	msg := r.Message
	if isSensitiveValue(msg) {
		msg = MaskValue
	}
	sanitized := slog.NewRecord(r.Time, r.Level, msg, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs implements slog.Handler.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(out)}
}

// WithGroup implements slog.Handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

func sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			out[i] = sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	key := strings.ToLower(a.Key)
	if sensitiveKeys[key] || containsSensitiveKeyword(key) {
		return slog.String(a.Key, MaskValue)
	}
	if a.Value.Kind() == slog.KindString && isSensitiveValue(a.Value.String()) {
		return slog.String(a.Key, MaskValue)
	}
	return a
}

func containsSensitiveKeyword(key string) bool {
	for _, kw := range sensitiveKeywords {
		if strings.Contains(key, kw) {
			return true
		}
	}
	return false
}

func isSensitiveValue(v string) bool {
	for _, p := range sensitivePatterns {
		if p.MatchString(v) {
			return true
		}
	}
	return false
}

func newLogger(h slog.Handler) *slog.Logger {
	return slog.New(NewSecureHandler(h))
}

func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// NewSecureLogger returns a text logger with masking. verbose lowers the
// level from Info to Debug, which includes every line tor prints.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return newLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelFor(verbose)}))
}

// NewSecureJSONLogger is NewSecureLogger with JSON output.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return newLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelFor(verbose)}))
}

// Discard returns a logger that drops everything. Useful as a default in
// tests and library code that received no logger.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

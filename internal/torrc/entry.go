package torrc

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// Severity classifies a validation issue.
type Severity int

const (
	// SeverityWarning is advisory; the entry can still be written.
	SeverityWarning Severity = iota
	// SeverityError means tor is expected to reject or misbehave on the entry.
	SeverityError
)

// String returns the lower-case name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Issue is a single validation result.
type Issue struct {
	Severity Severity
	Message  string
}

func warnf(format string, args ...any) Issue {
	return Issue{Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)}
}

func errorf(format string, args ...any) Issue {
	return Issue{Severity: SeverityError, Message: fmt.Sprintf(format, args...)}
}

// Entry is one feature area of a torrc.
type Entry interface {
	// Validate reports zero or more issues. It never modifies the entry.
	Validate() []Issue

	// Serialize appends the entry's directives to w.
	Serialize(w *Writer)
}

// Validate runs Validate on every entry and concatenates the results.
func Validate(entries ...Entry) []Issue {
	var issues []Issue
	for _, e := range entries {
		issues = append(issues, e.Validate()...)
	}
	return issues
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Write serializes entries in order into w. The sink is neither truncated nor
// closed; the caller owns its lifetime.
func Write(w io.Writer, entries ...Entry) error {
	tw := NewWriter(w)
	for _, e := range entries {
		e.Serialize(tw)
	}
	return tw.Flush()
}

// WriteValidated validates entries first and writes nothing if any of them
// reports an error-severity issue.
func WriteValidated(w io.Writer, entries ...Entry) error {
	issues := Validate(entries...)
	if HasErrors(issues) {
		return &ValidationError{Issues: issues}
	}
	return Write(w, entries...)
}

// Writer emits "Keyword value" lines. The first write error is sticky and
// reported by Flush.
type Writer struct {
	bw  *bufio.Writer
	err error
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// Line writes keyword followed by the space-separated values.
func (w *Writer) Line(keyword string, values ...string) {
	if w.err != nil {
		return
	}
	line := keyword
	if len(values) > 0 {
		line += " " + strings.Join(values, " ")
	}
	_, w.err = w.bw.WriteString(line + "\n")
}

// Raw writes a line verbatim.
func (w *Writer) Raw(line string) {
	if w.err != nil {
		return
	}
	_, w.err = w.bw.WriteString(line + "\n")
}

// Bool writes keyword as 1 or 0.
func (w *Writer) Bool(keyword string, v bool) {
	w.Line(keyword, formatBool(v))
}

// Seconds writes d as whole seconds. Durations under one second would
// render as 0 and are skipped.
func (w *Writer) Seconds(keyword string, d time.Duration) {
	if d < time.Second {
		return
	}
	w.Line(keyword, strconv.FormatInt(int64(d/time.Second), 10))
}

// Endpoints writes one line per endpoint.
func (w *Writer) Endpoints(keyword string, endpoints []netip.AddrPort) {
	for _, ep := range endpoints {
		w.Line(keyword, FormatEndpoint(ep))
	}
}

// fail records err unless an earlier error is already held.
func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// Flush writes buffered data to the underlying sink and returns the first
// error encountered.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.bw.Flush()
}

func formatBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// FormatEndpoint renders an endpoint the way tor expects: IPv4 as host:port,
// IPv6 as [host]:port.
func FormatEndpoint(ep netip.AddrPort) string {
	addr := ep.Addr().Unmap()
	port := strconv.Itoa(int(ep.Port()))
	if addr.Is4() {
		return addr.String() + ":" + port
	}
	return "[" + addr.WithZone("").String() + "]:" + port
}

func validateEndpoints(keyword string, endpoints []netip.AddrPort) []Issue {
	var issues []Issue
	seen := make(map[netip.AddrPort]bool, len(endpoints))
	for _, ep := range endpoints {
		if !ep.Addr().IsValid() {
			issues = append(issues, errorf("%s: endpoint has no address", keyword))
			continue
		}
		if ep.Port() == 0 {
			issues = append(issues, errorf("%s: port must be between 1 and 65535 (%s)", keyword, FormatEndpoint(ep)))
		}
		if seen[ep] {
			issues = append(issues, warnf("%s: duplicate endpoint %s", keyword, FormatEndpoint(ep)))
		}
		seen[ep] = true
		if !ep.Addr().IsLoopback() {
			issues = append(issues, warnf("%s: %s is reachable from outside this host", keyword, FormatEndpoint(ep)))
		}
	}
	return issues
}

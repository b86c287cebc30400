package report

import (
	"fmt"
	"io"
	"strings"
)

// SimpleWriter prints a plain-text history for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose lists every transition under its session.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists transitions under each session.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the history.
func (w *SimpleWriter) Write(entries []Entry) (int, error) {
	var sb strings.Builder

	rule := strings.Repeat("=", 70)
	sb.WriteString(rule + "\n")
	sb.WriteString("                      TORGATE SESSION HISTORY\n")
	sb.WriteString(rule + "\n\n")

	if len(entries) == 0 {
		sb.WriteString("  No sessions recorded\n\n")
		return w.output.Write([]byte(sb.String()))
	}

	sum := Summarize(entries)
	fmt.Fprintf(&sb, "  Sessions:  %d (%d running)\n", sum.Total, sum.Open)
	fmt.Fprintf(&sb, "  Connected: %d\n", sum.Connected)
	fmt.Fprintf(&sb, "  Killed:    %d\n", sum.Killed)
	fmt.Fprintf(&sb, "  Blocked:   %d\n", sum.Blocked)
	fmt.Fprintf(&sb, "  Uptime:    %s\n\n", sum.Uptime)

	sb.WriteString(strings.Repeat("-", 70) + "\n")
	for _, e := range entries {
		s := e.Session
		fmt.Fprintf(&sb, "%s  %s\n", s.ID, s.StartedAt.Format(timeLayout))
		fmt.Fprintf(&sb, "  state: %-20s duration: %s\n", orDash(s.FinalState), formatDuration(e))
		fmt.Fprintf(&sb, "  tor:   %-20s exit: %s\n", orDash(s.TorVersion), orDash(s.ExitIP))
		if w.verbose {
			fmt.Fprintf(&sb, "  socks: %s  control: %s\n", orDash(s.SocksAddrs), orDash(s.ControlAddr))
			for _, t := range e.Transitions {
				fmt.Fprintf(&sb, "    %s  %-20s %3d%%\n", t.At.Format("15:04:05"), t.State, t.Progress)
			}
		}
		sb.WriteString("\n")
	}
	return w.output.Write([]byte(sb.String()))
}

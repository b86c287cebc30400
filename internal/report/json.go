package report

import (
	"encoding/json"
	"io"
	"time"
)

// JSONWriter outputs the history as a single JSON document.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output with the given prefix and indent.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type jsonTransition struct {
	At       time.Time `json:"at"`
	State    string    `json:"state"`
	Progress int       `json:"progress"`
}

type jsonSession struct {
	ID          string           `json:"id"`
	StartedAt   time.Time        `json:"started_at"`
	EndedAt     *time.Time       `json:"ended_at,omitempty"`
	DurationSec float64          `json:"duration_seconds,omitempty"`
	TorPath     string           `json:"tor_path,omitempty"`
	TorVersion  string           `json:"tor_version,omitempty"`
	SocksAddrs  string           `json:"socks_addrs,omitempty"`
	ControlAddr string           `json:"control_addr,omitempty"`
	FinalState  string           `json:"final_state,omitempty"`
	ExitIP      string           `json:"exit_ip,omitempty"`
	Transitions []jsonTransition `json:"transitions"`
}

type jsonSummary struct {
	Total     int            `json:"total"`
	Open      int            `json:"open"`
	Connected int            `json:"connected"`
	Killed    int            `json:"killed"`
	Blocked   int            `json:"blocked"`
	ByState   map[string]int `json:"by_state"`
}

type jsonDocument struct {
	Summary  jsonSummary   `json:"summary"`
	Sessions []jsonSession `json:"sessions"`
}

// Write outputs the history.
func (w *JSONWriter) Write(entries []Entry) (int, error) {
	sum := Summarize(entries)
	doc := jsonDocument{
		Summary: jsonSummary{
			Total:     sum.Total,
			Open:      sum.Open,
			Connected: sum.Connected,
			Killed:    sum.Killed,
			Blocked:   sum.Blocked,
			ByState:   sum.ByState,
		},
		Sessions: make([]jsonSession, 0, len(entries)),
	}
	for _, e := range entries {
		s := e.Session
		js := jsonSession{
			ID:          s.ID,
			StartedAt:   s.StartedAt,
			TorPath:     s.TorPath,
			TorVersion:  s.TorVersion,
			SocksAddrs:  s.SocksAddrs,
			ControlAddr: s.ControlAddr,
			FinalState:  s.FinalState,
			ExitIP:      s.ExitIP,
			Transitions: make([]jsonTransition, 0, len(e.Transitions)),
		}
		if !s.Open() {
			ended := s.EndedAt
			js.EndedAt = &ended
			js.DurationSec = s.Duration().Seconds()
		}
		for _, t := range e.Transitions {
			js.Transitions = append(js.Transitions, jsonTransition{At: t.At, State: t.State, Progress: t.Progress})
		}
		doc.Sessions = append(doc.Sessions, js)
	}

	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(doc, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}

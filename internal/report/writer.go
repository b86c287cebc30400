package report

import (
	"io"
	"time"
)

// Writer renders session history.
type Writer interface {
	// Write outputs entries and returns the number of bytes written.
	Write(entries []Entry) (int, error)
}

// MultiWriter writes the same history to several Writers, stopping at the
// first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs entries to all writers and returns the total bytes written.
func (m *MultiWriter) Write(entries []Entry) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(entries)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

const timeLayout = "2006-01-02 15:04:05 MST"

func formatDuration(e Entry) string {
	if e.Session.Open() {
		return "running"
	}
	return e.Session.Duration().Round(time.Second).String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

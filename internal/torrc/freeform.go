package torrc

import "strings"

// FreeformOptions carries raw torrc lines that have no typed entry.
type FreeformOptions struct {
	Lines []string
}

var _ Entry = (*FreeformOptions)(nil)

// Validate implements Entry.
func (o *FreeformOptions) Validate() []Issue {
	var issues []Issue
	for i, line := range o.Lines {
		if strings.ContainsAny(line, "\r\n") {
			issues = append(issues, errorf("freeform line %d: contains a line break", i+1))
			continue
		}
		if strings.TrimSpace(line) == "" {
			issues = append(issues, warnf("freeform line %d: empty", i+1))
		}
	}
	return issues
}

// Serialize implements Entry.
func (o *FreeformOptions) Serialize(w *Writer) {
	for _, line := range o.Lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		w.Raw(line)
	}
}

package control

import (
	"fmt"
	"net/textproto"
	"strconv"
	"strings"
)

// Message is a complete reply from tor.
type Message struct {
	Status        int
	StatusMessage string
	// Data holds continuation and data block lines, each ending in "\n".
	Data string
}

// OK reports a 2xx status.
func (m *Message) OK() bool {
	return m.Status >= 200 && m.Status < 300
}

// Lines returns Data split into lines without the trailing empty element.
func (m *Message) Lines() []string {
	if m.Data == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(m.Data, "\n"), "\n")
}

// readReply reads lines until a final "NNN text" line. inReply is true
// when the error hit after part of the reply was consumed, so the rest of
// it is still unread on the stream.
func readReply(r *textproto.Reader) (msg *Message, inReply bool, err error) {
	var data strings.Builder
	for first := true; ; first = false {
		line, err := r.ReadLine()
		if err != nil {
			return nil, !first, err
		}
		status, sep, text, err := splitLine(line)
		if err != nil {
			return nil, !first, err
		}

		switch sep {
		case ' ':
			return &Message{Status: status, StatusMessage: text, Data: data.String()}, false, nil
		case '-':
			data.WriteString(text)
			data.WriteByte('\n')
		case '+':
			data.WriteString(text)
			data.WriteByte('\n')
			for {
				l, err := r.ReadLine()
				if err != nil {
					return nil, true, err
				}
				if l == "." {
					break
				}
				data.WriteString(l)
				data.WriteByte('\n')
			}
		}
	}
}

func splitLine(line string) (status int, sep byte, text string, err error) {
	if len(line) < 4 {
		return 0, 0, "", fmt.Errorf("%w: %q", ErrMalformedReply, line)
	}
	status, err = strconv.Atoi(line[:3])
	if err != nil || status < 100 {
		return 0, 0, "", fmt.Errorf("%w: bad status in %q", ErrMalformedReply, line)
	}
	sep = line[3]
	if sep != ' ' && sep != '-' && sep != '+' {
		return 0, 0, "", fmt.Errorf("%w: bad separator in %q", ErrMalformedReply, line)
	}
	return status, sep, line[4:], nil
}

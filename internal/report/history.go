package report

import (
	"context"
	"time"

	"github.com/nao1215/torgate/internal/journal"
)

// Entry is one session with its transitions.
type Entry struct {
	Session     *journal.Session
	Transitions []journal.Transition
}

// Summary counts sessions by how they ended.
type Summary struct {
	Total     int
	Open      int
	Connected int // sessions that reached Connected at least once
	Killed    int // ended by an unexpected tor exit
	Blocked   int // ended in BlockedProcess or BlockedProxy
	ByState   map[string]int
	Uptime    time.Duration
}

// Session states the summary looks for.
const (
	stateConnected  = "Connected"
	stateKillSwitch = "KillSwitchTriggered"
	stateKilled     = "Killed"
)

// Summarize aggregates entries.
func Summarize(entries []Entry) Summary {
	s := Summary{Total: len(entries), ByState: map[string]int{}}
	for _, e := range entries {
		if e.Session.Open() {
			s.Open++
		} else {
			s.ByState[e.Session.FinalState]++
			s.Uptime += e.Session.Duration()
		}
		if reached(e.Transitions, stateConnected) {
			s.Connected++
		}
		switch e.Session.FinalState {
		case stateKillSwitch, stateKilled:
			s.Killed++
		case "BlockedProcess", "BlockedProxy":
			s.Blocked++
		}
	}
	return s
}

func reached(trs []journal.Transition, state string) bool {
	for _, t := range trs {
		if t.State == state {
			return true
		}
	}
	return false
}

// Load reads the latest limit sessions with their transitions.
func Load(ctx context.Context, j *journal.Journal, limit int) ([]Entry, error) {
	sessions, err := j.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(sessions))
	for _, s := range sessions {
		trs, err := j.Transitions(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Session: s, Transitions: trs})
	}
	return entries, nil
}

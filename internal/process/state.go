package process

// State is the lifecycle state of a tor process.
type State int

const (
	// Stopped is the initial state and the state after a graceful stop.
	Stopped State = iota
	// Started means the process was launched and has not reported progress.
	Started
	// Bootstrapping means tor reported bootstrap progress below 100%.
	Bootstrapping
	// Running means tor reported 100% bootstrap progress.
	Running
	// Killed means the process terminated without Stop being called.
	Killed
	// Blocked means the executable could not be launched.
	Blocked
)

var stateNames = [...]string{
	Stopped:       "Stopped",
	Started:       "Started",
	Bootstrapping: "Bootstrapping",
	Running:       "Running",
	Killed:        "Killed",
	Blocked:       "Blocked",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Live reports whether a process exists in this state.
func (s State) Live() bool {
	return s == Started || s == Bootstrapping || s == Running
}

// EventKind tells which attribute an Event reports.
type EventKind int

const (
	// StateChanged carries the new State.
	StateChanged EventKind = iota
	// ProgressChanged carries Progress, Tag and Summary.
	ProgressChanged
	// VersionDetected carries Version.
	VersionDetected
)

// Event is delivered to subscribers on every attribute change.
type Event struct {
	Kind     EventKind
	State    State
	Progress int
	Tag      string
	Summary  string
	Version  string
}

package session

// State is the state of a session as shown to the user.
type State int

const (
	// Disconnected is the initial state.
	Disconnected State = iota
	// BlockedProcess means tor could not be launched.
	BlockedProcess
	// BlockedProxy means tor runs but the proxy settings could not be applied.
	BlockedProxy
	// Disconnecting means a stop was requested.
	Disconnecting
	// KillSwitchTriggered means tor died and the proxy is kept to block traffic.
	KillSwitchTriggered
	// Connecting means tor is bootstrapping.
	Connecting
	// ConnectingStalled means bootstrap progress stopped for the stall timeout.
	ConnectingStalled
	// Connected means tor runs and the proxy points at it.
	Connected
)

var stateNames = [...]string{
	Disconnected:        "Disconnected",
	BlockedProcess:      "BlockedProcess",
	BlockedProxy:        "BlockedProxy",
	Disconnecting:       "Disconnecting",
	KillSwitchTriggered: "KillSwitchTriggered",
	Connecting:          "Connecting",
	ConnectingStalled:   "ConnectingStalled",
	Connected:           "Connected",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

func (s State) connecting() bool {
	return s == Connecting || s == ConnectingStalled
}

// busy reports states in which Start is refused.
func (s State) busy() bool {
	return s.connecting() || s == Connected || s == Disconnecting
}

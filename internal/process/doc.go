// Package process runs a tor executable and tracks its lifecycle.
//
// A Process writes the torrc entries it is started with to a temporary file,
// launches tor with "-f <file>" and follows its standard output. Each line is
// matched against three patterns: the version banner, the timestamped log
// line, and the "Bootstrapped N%" message inside a log line. Matches update
// the Version, BootstrapProgress and State attributes and are delivered to
// subscribers synchronously, in the order the lines were printed.
//
// The state machine:
//
//	Stopped ──Start──▶ Started ──▶ Bootstrapping ──▶ Running
//	   ▲                  │              │              │
//	   └──────Stop────────┴──────────────┴──────────────┘
//
//	launch failure      ⇒ Blocked
//	unexpected exit     ⇒ Killed
//
// Stop interrupts tor and waits for a grace period before killing it. The
// temporary configuration file is removed however the process ends.
//
// The operating system process is reached through the Launcher and Handle
// interfaces so tests can drive the state machine with a synthetic stream.
package process

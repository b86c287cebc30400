// Package session brings a tor client up and down and connects it to the
// host's proxy settings.
//
// A Session picks free loopback ports for SOCKS and the control port,
// generates a one-off control password, starts the controller with the
// resulting torrc entries and follows its events:
//
//   - bootstrap progress re-arms a stall timer; if it fires the session is
//     ConnectingStalled until progress resumes
//   - Running asks the proxy manager whether settings can be changed and,
//     if so, points them at the SOCKS endpoints (Connected) or gives up
//     with BlockedProxy
//   - Stopped clears the proxy (Disconnected)
//   - Killed clears the proxy too, unless the kill switch is on, in which
//     case the dead proxy is left in place to block traffic
//     (KillSwitchTriggered)
//
// Collaborator calls never happen while the session's lock is held.
package session

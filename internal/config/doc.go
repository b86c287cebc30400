// Package config holds torgate's settings: built-in defaults, overlaid by a
// YAML file, overlaid by command line flags. Config.Entries turns the
// tor-facing part into torrc entries for the session.
package config

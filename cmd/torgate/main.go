// Package main provides the entry point for the torgate CLI.
//
// torgate starts a private tor client, points the session's proxy
// settings at it and tears everything down again on exit.
//
// Usage:
//
//	torgate connect
//	torgate torrc
//	torgate history --markdown
//
// See --help for all available options.
package main

func main() {
	Execute()
}

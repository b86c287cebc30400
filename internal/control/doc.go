// Package control speaks tor's control protocol over a TCP connection.
//
// A reply is one or more lines of the form "NNN<sep><text>":
//
//	NNN-text    continuation; text is appended to Data followed by "\n"
//	NNN+text    data block; text and each following line up to "." are
//	            appended to Data verbatim, each followed by "\n"
//	NNN text    final line; text becomes StatusMessage
//
// One command/reply exchange runs at a time. Every call takes a context;
// cancelling it aborts a pending read, after which the connection is closed
// because the reply stream can no longer be trusted.
package control

// Package journal keeps a SQLite history of torgate sessions.
//
// Each session gets a row in sessions, keyed by a random UUID, and one row
// in transitions per state it passed through. The database is a single
// file opened with modernc.org/sqlite, so no cgo is needed and the journal
// can be copied or removed like any other file. WAL mode lets the history
// command read while a connect command is still writing.
package journal

// Package report renders the session journal for people and tools.
//
// SimpleWriter prints a terminal summary, JSONWriter emits a stable JSON
// document for scripts, and MarkdownWriter produces a shareable history
// with a mermaid chart of how sessions ended. All of them implement Writer
// so the history command can pick one by flag.
package report

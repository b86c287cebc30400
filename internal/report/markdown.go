package report

import (
	"io"
	"slices"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs the history as GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the history.
func (w *MarkdownWriter) Write(entries []Entry) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("torgate Session History")
	md.PlainText("")

	if len(entries) == 0 {
		md.Note("No sessions recorded yet. Run `torgate connect` to start one.")
		return len(md.String()), md.Build()
	}

	sum := Summarize(entries)
	w.writeSummary(md, sum)
	w.writeSessions(md, entries)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by [torgate](https://github.com/nao1215/torgate)*")

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, sum Summary) {
	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Sessions", strconv.Itoa(sum.Total)},
			{"Running", strconv.Itoa(sum.Open)},
			{"Reached Connected", strconv.Itoa(sum.Connected)},
			{"Killed", strconv.Itoa(sum.Killed)},
			{"Blocked", strconv.Itoa(sum.Blocked)},
			{"Total uptime", sum.Uptime.String()},
		},
	})
	md.PlainText("")

	if len(sum.ByState) > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Final States"),
			piechart.WithShowData(true),
		)
		states := make([]string, 0, len(sum.ByState))
		for st := range sum.ByState {
			states = append(states, st)
		}
		slices.Sort(states)
		for _, st := range states {
			chart.LabelAndIntValue(orDash(st), uint64(sum.ByState[st])) //nolint:gosec // counts are non-negative
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case sum.Killed > 0:
		md.Cautionf("%d session(s) ended with an unexpected tor exit.", sum.Killed)
	case sum.Blocked > 0:
		md.Warningf("%d session(s) could not start or could not apply the proxy.", sum.Blocked)
	default:
		md.Tip("Every recorded session shut down cleanly.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeSessions(md *markdown.Markdown, entries []Entry) {
	md.H2("Sessions")
	md.PlainText("")

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		s := e.Session
		rows = append(rows, []string{
			"`" + s.ID[:min(8, len(s.ID))] + "`",
			s.StartedAt.Format(timeLayout),
			formatDuration(e),
			orDash(s.FinalState),
			orDash(s.TorVersion),
			orDash(s.ExitIP),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Session", "Started", "Duration", "Final state", "Tor", "Exit"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, e := range entries {
		if len(e.Transitions) == 0 {
			continue
		}
		items := make([]string, 0, len(e.Transitions))
		for _, t := range e.Transitions {
			items = append(items, t.At.Format("15:04:05")+" "+t.State+" ("+strconv.Itoa(t.Progress)+"%)")
		}
		md.H3("Session " + e.Session.ID)
		md.PlainText("")
		md.BulletList(items...)
		md.PlainText("")
	}
}

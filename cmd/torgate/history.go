package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/torgate/internal/journal"
	"github.com/nao1215/torgate/internal/report"
)

// defaultHistoryLimit is how many sessions history shows without --limit.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded sessions",
		Long: `History lists the sessions connect recorded in the journal, newest first,
with a summary of how they ended.

Examples:
  torgate history
  torgate history --verbose -n 5
  torgate history --json > sessions.json
  torgate history --markdown -o sessions.md
  torgate history --prune 720h`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	cmd.Flags().BoolP("markdown", "m", false, "Output as Markdown")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Number of sessions to show (0: all)")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file and print a plain summary")
	cmd.Flags().Duration("prune", 0, "Delete sessions older than this before listing")
	cmd.Flags().String("journal-dir", "", "Session journal directory (default: XDG state directory)")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	output, err := flags.GetString("output")
	if err != nil {
		return err
	}
	prune, err := flags.GetDuration("prune")
	if err != nil {
		return err
	}

	j, err := journal.Open(cfg.JournalDirectory(), journal.Options{EnableWAL: true})
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded")
		return nil
	}
	if err != nil {
		return err
	}
	defer j.Close()

	ctx := cmd.Context()
	if prune > 0 {
		n, err := j.Prune(ctx, time.Now().Add(-prune))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Pruned %d session(s)\n", n)
	}

	entries, err := report.Load(ctx, j, limit)
	if err != nil {
		return err
	}

	if output == "" {
		_, err = selectWriter(cmd, cfg.JSONReport, cfg.MarkdownReport, cfg.Verbose).Write(entries)
		return err
	}

	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	fileWriter := report.Writer(report.NewSimpleWriter(f, report.WithVerbose(true)))
	switch {
	case cfg.JSONReport:
		fileWriter = report.NewJSONWriter(f, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		fileWriter = report.NewMarkdownWriter(f)
	}
	w := report.NewMultiWriter(fileWriter, report.NewSimpleWriter(cmd.OutOrStdout()))
	if _, err := w.Write(entries); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", output)
	return nil
}

func selectWriter(cmd *cobra.Command, asJSON, asMarkdown, verbose bool) report.Writer {
	out := cmd.OutOrStdout()
	switch {
	case asJSON:
		return report.NewJSONWriter(out, report.WithPrettyPrint())
	case asMarkdown:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(verbose))
	}
}

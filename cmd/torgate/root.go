package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "torgate",
		Short: "Run a private tor client and route a session through it",
		Long: `torgate locates a tor executable, launches it with a generated torrc on
free loopback ports, waits for bootstrap and applies a SOCKS proxy for the
session. On exit tor is stopped and the previous proxy settings restored.

Settings are read from --config, ./.torgate.yaml or the XDG config file
(~/.config/torgate/config.yaml on Linux). Run "torgate init" for a template.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: ./.torgate.yaml or the XDG config file)")
	cmd.PersistentFlags().Bool("json-log", false, "Write logs as JSON")

	cmd.AddCommand(NewConnectCmd())
	cmd.AddCommand(NewTorrcCmd())
	cmd.AddCommand(NewHashPasswordCmd())
	cmd.AddCommand(NewPortCmd())
	cmd.AddCommand(NewLocateCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nao1215/torgate/internal/config"
	"github.com/nao1215/torgate/internal/portscan"
)

// NewPortCmd creates the port command.
func NewPortCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "port [preferred]",
		Short: "Print the free TCP port closest to a preferred one",
		Long: `Port prints the free port torgate would pick for a listener, searching
outward from the preferred port (9050 by default).

Examples:
  torgate port
  torgate port 9150 --exclude 9151`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPortCmd,
	}
	cmd.Flags().IntSlice("exclude", nil, "Ports that must not be returned")
	return cmd
}

func runPortCmd(cmd *cobra.Command, args []string) error {
	preferred := uint16(config.DefaultSocksPort)
	if len(args) == 1 {
		p, err := strconv.ParseUint(args[0], 10, 16)
		if err != nil || p == 0 {
			return fmt.Errorf("invalid port %q", args[0])
		}
		preferred = uint16(p)
	}

	exclude, err := cmd.Flags().GetIntSlice("exclude")
	if err != nil {
		return err
	}
	excluded := make(map[int]struct{}, len(exclude))
	for _, p := range exclude {
		excluded[p] = struct{}{}
	}

	port, err := portscan.New().ClosestFreePort(preferred, excluded)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), port)
	return nil
}

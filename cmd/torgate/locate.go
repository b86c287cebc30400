package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/torgate/internal/locator"
)

// NewLocateCmd creates the locate command.
func NewLocateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locate [name]",
		Short: "Show where tor (or a transport plugin) would be found",
		Long: `Locate prints every matching executable in search order. The first line
is the one connect would run. The directory named by the override
variable (TORGATE_TOR_DIR unless configured otherwise) is searched first.

Examples:
  torgate locate
  torgate locate lyrebird
  torgate locate --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLocateCmd,
	}
	cmd.Flags().BoolP("all", "a", false, "Print every match instead of the first")
	return cmd
}

func runLocateCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}

	name := cfg.Executable
	if len(args) == 1 {
		name = args[0]
	}

	loc := locator.New(locator.WithOverrideEnv(cfg.OverrideEnv))
	found := false
	for path := range loc.Locate(name) {
		found = true
		fmt.Fprintln(cmd.OutOrStdout(), path)
		if !all {
			break
		}
	}
	if !found {
		return fmt.Errorf("%s not found (set %s to its directory)", name, cfg.OverrideEnv)
	}
	return nil
}

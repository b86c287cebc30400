package main

import (
	"crypto/rand"
	"fmt"
	"net/netip"

	"github.com/spf13/cobra"

	"github.com/nao1215/torgate/internal/portscan"
	"github.com/nao1215/torgate/internal/torrc"
)

// NewTorrcCmd creates the torrc command.
func NewTorrcCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "torrc",
		Short: "Print the torrc connect would generate",
		Long: `Torrc renders the configuration torgate hands to tor, without launching
it. Ports are the preferred ones unless --free picks the closest free
ports the way connect does. The control password is random unless
--password is given; only its hash is printed.

Examples:
  torgate torrc
  torgate torrc --free --socks-port 9150
  torgate torrc -c bridges.yaml > torrc`,
		Args: cobra.NoArgs,
		RunE: runTorrcCmd,
	}
	addSessionFlags(cmd)
	cmd.Flags().Bool("free", false, "Pick the closest free ports instead of the preferred ones")
	cmd.Flags().String("password", "", "Control port password (default: random)")
	cmd.Flags().Bool("force", false, "Print even when validation reports errors")
	return cmd
}

func runTorrcCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applySessionFlags(cmd, cfg); err != nil {
		return err
	}
	flags := cmd.Flags()
	free, err := flags.GetBool("free")
	if err != nil {
		return err
	}
	password, err := flags.GetString("password")
	if err != nil {
		return err
	}
	force, err := flags.GetBool("force")
	if err != nil {
		return err
	}

	socksPort, controlPort := cfg.SocksPort, cfg.ControlPort
	if free {
		scanner := portscan.New()
		if socksPort, err = scanner.ClosestFreePort(socksPort, nil); err != nil {
			return err
		}
		if controlPort, err = scanner.ClosestFreePort(controlPort, map[int]struct{}{int(socksPort): {}}); err != nil {
			return err
		}
	}
	if password == "" {
		password = rand.Text()
	}

	client := cfg.ClientOptions()
	client.SocksEndpoints = portscan.LoopbackEndpoints(socksPort)
	ctl := &torrc.ControlPortOptions{
		Endpoints: []netip.AddrPort{netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), controlPort)},
		Password:  password,
	}
	extra, err := cfg.Entries()
	if err != nil {
		return err
	}
	entries := append([]torrc.Entry{&client, ctl}, extra...)

	for _, issue := range torrc.Validate(entries...) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", issue.Severity, issue.Message)
	}
	if force {
		return torrc.Write(cmd.OutOrStdout(), entries...)
	}
	return torrc.WriteValidated(cmd.OutOrStdout(), entries...)
}

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/torgate/internal/config"
	"github.com/nao1215/torgate/internal/log"
)

// loadConfig reads the configuration file and applies the persistent flags
// the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		if cfg.Verbose, err = flags.GetBool("verbose"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("json-log") {
		if cfg.JSONLog, err = flags.GetBool("json-log"); err != nil {
			return nil, err
		}
	}
	if flags.Lookup("journal-dir") != nil && flags.Changed("journal-dir") {
		if cfg.JournalDir, err = flags.GetString("journal-dir"); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// applySessionFlags copies the connect/torrc flags the user set onto cfg.
func applySessionFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("socks-port") {
		if cfg.SocksPort, err = flags.GetUint16("socks-port"); err != nil {
			return err
		}
	}
	if flags.Changed("control-port") {
		if cfg.ControlPort, err = flags.GetUint16("control-port"); err != nil {
			return err
		}
	}
	if flags.Changed("tor") {
		if cfg.Executable, err = flags.GetString("tor"); err != nil {
			return err
		}
	}
	if flags.Lookup("kill-switch") != nil && flags.Changed("kill-switch") {
		if cfg.KillSwitch, err = flags.GetBool("kill-switch"); err != nil {
			return err
		}
	}
	if flags.Lookup("stall-timeout") != nil && flags.Changed("stall-timeout") {
		if cfg.StallTimeout, err = flags.GetDuration("stall-timeout"); err != nil {
			return err
		}
	}
	if flags.Lookup("verify") != nil && flags.Changed("verify") {
		if cfg.VerifyExit, err = flags.GetBool("verify"); err != nil {
			return err
		}
	}
	if flags.Lookup("no-journal") != nil && flags.Changed("no-journal") {
		if cfg.NoJournal, err = flags.GetBool("no-journal"); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	return nil
}

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().Uint16("socks-port", config.DefaultSocksPort, "Preferred SOCKS port")
	cmd.Flags().Uint16("control-port", config.DefaultControlPort, "Preferred control port")
	cmd.Flags().String("tor", config.DefaultExecutable, "Tor executable name or path")
}

// newLogger builds the masking logger every command logs through.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	w := cmd.ErrOrStderr()
	if cfg.JSONLog {
		return log.NewSecureJSONLogger(w, cfg.Verbose)
	}
	return log.NewSecureLogger(w, cfg.Verbose)
}

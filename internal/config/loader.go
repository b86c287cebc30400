package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// LocalConfigFile is looked up in the working directory.
	LocalConfigFile = ".torgate.yaml"

	// ConfigFileName is looked up in the XDG config directory.
	ConfigFileName = "config.yaml"
)

// LoadFile overlays the YAML file at path onto cfg. Keys missing from the
// file keep their current value; unknown keys are an error.
func LoadFile(cfg *Config, path string) error {
	f, err := os.Open(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		// An empty file decodes to io.EOF.
		if errors.Is(err, io.EOF) {
			cfg.ConfigFilePath = path
			return nil
		}
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.ConfigFilePath = path
	return nil
}

// FindConfigFile returns the first existing file among configPath (when
// set), ./.torgate.yaml and the XDG config file, or "" when none exists.
// An explicit configPath that does not exist also yields "".
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if isFile(configPath) {
			return configPath
		}
		return ""
	}
	if cwd, err := os.Getwd(); err == nil {
		if p := filepath.Join(cwd, LocalConfigFile); isFile(p) {
			return p
		}
	}
	if p := filepath.Join(XDGConfigDir(), ConfigFileName); isFile(p) {
		return p
	}
	return ""
}

// Load returns the defaults overlaid by the configuration file found by
// FindConfigFile. Naming a file that does not exist is an error; finding
// none on the search path is not.
func Load(configPath string) (*Config, error) {
	cfg := NewConfig()
	path := FindConfigFile(configPath)
	if path == "" {
		if configPath != "" {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return cfg, nil
	}
	if err := LoadFile(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

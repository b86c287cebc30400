package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/torgate/internal/torrc"
)

// Defaults.
const (
	// AppName is used for XDG directories and the executable name.
	AppName = "torgate"

	// DefaultExecutable is the tor binary looked up on the search path.
	DefaultExecutable = "tor"

	// DefaultOverrideEnv names the variable holding a directory that is
	// searched for tor before anything else.
	DefaultOverrideEnv = "TORGATE_TOR_DIR"

	// DefaultSocksPort and DefaultControlPort are tor's conventional ports.
	// The session moves to the closest free port when they are taken.
	DefaultSocksPort   = 9050
	DefaultControlPort = 9051

	// DefaultStallTimeout is how long bootstrap may go without progress.
	DefaultStallTimeout = 30 * time.Second

	// DefaultGracePeriod is how long tor gets to exit after SIGINT.
	DefaultGracePeriod = 10 * time.Second

	// DefaultKeepAlive is emitted as KeepAlivePeriod.
	DefaultKeepAlive = 5 * time.Minute
)

// Config is the merged configuration. The yaml tags describe the config
// file; fields without a tag are flag-only.
type Config struct {
	// Executable is the tor binary name or an absolute path.
	Executable string `yaml:"executable,omitempty"`

	// OverrideEnv names the environment variable checked first when
	// locating tor.
	OverrideEnv string `yaml:"overrideEnv,omitempty"`

	SocksPort   uint16 `yaml:"socksPort,omitempty"`
	ControlPort uint16 `yaml:"controlPort,omitempty"`

	StallTimeout time.Duration `yaml:"stallTimeout,omitempty"`
	GracePeriod  time.Duration `yaml:"gracePeriod,omitempty"`

	// KillSwitch keeps the system proxy pointing at tor after tor dies so
	// traffic fails closed.
	KillSwitch bool `yaml:"killSwitch,omitempty"`

	KeepAlive           time.Duration `yaml:"keepAlive,omitempty"`
	MaxCircuitDirtiness time.Duration `yaml:"maxCircuitDirtiness,omitempty"`
	LogScrubbing        bool          `yaml:"logScrubbing,omitempty"`

	// DataDir is tor's DataDirectory. Empty uses the XDG data directory.
	DataDir         string `yaml:"dataDir,omitempty"`
	CacheDir        string `yaml:"cacheDir,omitempty"`
	GeoIPFile       string `yaml:"geoipFile,omitempty"`
	GeoIPv6File     string `yaml:"geoipv6File,omitempty"`
	AvoidDiskWrites bool   `yaml:"avoidDiskWrites,omitempty"`

	// JournalDir holds the session journal. Empty uses the XDG state
	// directory; NoJournal turns recording off.
	JournalDir string `yaml:"journalDir,omitempty"`
	NoJournal  bool   `yaml:"noJournal,omitempty"`

	Bridges Bridges  `yaml:"bridges,omitempty"`
	Nodes   Nodes    `yaml:"nodes,omitempty"`
	Dormant *Dormant `yaml:"dormant,omitempty"`

	// ExtraLines are raw torrc lines appended after the generated ones.
	ExtraLines []string `yaml:"extraLines,omitempty"`

	// VerifyExit asks check.torproject.org whether traffic leaves through
	// tor once the session is connected.
	VerifyExit bool `yaml:"verifyExit,omitempty"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose,omitempty"`

	// JSONLog switches the log output to JSON.
	JSONLog bool `yaml:"jsonLog,omitempty"`

	// ConfigFilePath is the file the configuration was loaded from.
	ConfigFilePath string `yaml:"-"`

	// JSONReport and MarkdownReport select the history format.
	JSONReport     bool `yaml:"-"`
	MarkdownReport bool `yaml:"-"`
}

// Bridges configures bridge use.
type Bridges struct {
	Enabled bool     `yaml:"enabled,omitempty"`
	Lines   []string `yaml:"lines,omitempty"`
	Plugins []Plugin `yaml:"plugins,omitempty"`
}

// Plugin is a pluggable transport executable.
type Plugin struct {
	Transports []string `yaml:"transports"`
	Path       string   `yaml:"path"`
	Args       []string `yaml:"args,omitempty"`
}

// Nodes restricts relay selection. Each entry is a fingerprint, a country
// code or an address range.
type Nodes struct {
	Entry       []string `yaml:"entry,omitempty"`
	Exit        []string `yaml:"exit,omitempty"`
	Exclude     []string `yaml:"exclude,omitempty"`
	ExcludeExit []string `yaml:"excludeExit,omitempty"`
	Strict      bool     `yaml:"strict,omitempty"`
}

func (n Nodes) empty() bool {
	return len(n.Entry)+len(n.Exit)+len(n.Exclude)+len(n.ExcludeExit) == 0 && !n.Strict
}

// Dormant mirrors torrc.DormantOptions.
type Dormant struct {
	ClientTimeout                time.Duration `yaml:"clientTimeout"`
	TimeoutDisabledByIdleStreams bool          `yaml:"timeoutDisabledByIdleStreams,omitempty"`
	OnFirstStartup               bool          `yaml:"onFirstStartup,omitempty"`
	CanceledByStartup            bool          `yaml:"canceledByStartup,omitempty"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		Executable:   DefaultExecutable,
		OverrideEnv:  DefaultOverrideEnv,
		SocksPort:    DefaultSocksPort,
		ControlPort:  DefaultControlPort,
		StallTimeout: DefaultStallTimeout,
		GracePeriod:  DefaultGracePeriod,
		KeepAlive:    DefaultKeepAlive,
	}
}

// XDGDataDir is the default tor DataDirectory.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName, "tor")
}

// XDGConfigDir holds config.yaml.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGStateDir is the default journal directory.
func XDGStateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// DataDirectory returns DataDir or its default.
func (c *Config) DataDirectory() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return XDGDataDir()
}

// JournalDirectory returns JournalDir or its default.
func (c *Config) JournalDirectory() string {
	if c.JournalDir != "" {
		return c.JournalDir
	}
	return XDGStateDir()
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Executable == "" {
		return ErrNoExecutable
	}
	if c.SocksPort == 0 || c.ControlPort == 0 || c.SocksPort == c.ControlPort {
		return ErrInvalidPort
	}
	if c.StallTimeout <= 0 {
		return ErrInvalidStallTimeout
	}
	if c.GracePeriod <= 0 {
		return ErrInvalidGracePeriod
	}
	if c.KeepAlive < 0 {
		return ErrInvalidKeepAlive
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// ClientOptions returns the client entry without endpoints; the session
// fills those in once ports are allocated.
func (c *Config) ClientOptions() torrc.ClientOptions {
	return torrc.ClientOptions{
		ClientOnly:                  true,
		EnableLogScrubbing:          c.LogScrubbing,
		ExternalConnectionKeepAlive: c.KeepAlive,
		MaxCircuitDirtiness:         c.MaxCircuitDirtiness,
	}
}

// Entries builds the torrc entries the file describes beyond the client and
// control options. Parse failures are returned; semantic problems are left
// to the entries' own validation.
func (c *Config) Entries() ([]torrc.Entry, error) {
	entries := []torrc.Entry{&torrc.FileSystemOptions{
		DataDirectory:   c.DataDirectory(),
		CacheDirectory:  c.CacheDir,
		GeoIPFile:       c.GeoIPFile,
		GeoIPv6File:     c.GeoIPv6File,
		AvoidDiskWrites: c.AvoidDiskWrites,
	}}

	if c.Bridges.Enabled || len(c.Bridges.Lines) > 0 || len(c.Bridges.Plugins) > 0 {
		b, err := c.Bridges.options()
		if err != nil {
			return nil, err
		}
		entries = append(entries, b)
	}
	if !c.Nodes.empty() {
		n, err := c.Nodes.options()
		if err != nil {
			return nil, err
		}
		entries = append(entries, n)
	}
	if c.Dormant != nil {
		entries = append(entries, &torrc.DormantOptions{
			ClientTimeout:                c.Dormant.ClientTimeout,
			TimeoutDisabledByIdleStreams: c.Dormant.TimeoutDisabledByIdleStreams,
			OnFirstStartup:               c.Dormant.OnFirstStartup,
			CanceledByStartup:            c.Dormant.CanceledByStartup,
		})
	}
	if len(c.ExtraLines) > 0 {
		entries = append(entries, &torrc.FreeformOptions{Lines: c.ExtraLines})
	}
	return entries, nil
}

func (b Bridges) options() (*torrc.BridgeOptions, error) {
	opts := &torrc.BridgeOptions{UseBridges: b.Enabled}
	for _, line := range b.Lines {
		br, err := torrc.ParseBridge(line)
		if err != nil {
			return nil, fmt.Errorf("bridges: %w", err)
		}
		opts.Bridges = append(opts.Bridges, br)
	}
	for _, p := range b.Plugins {
		plugin := torrc.TransportPlugin{Path: p.Path, Args: p.Args}
		for _, name := range p.Transports {
			t, err := torrc.ParseTransport(name)
			if err != nil {
				return nil, fmt.Errorf("bridges: plugin %s: %w", p.Path, err)
			}
			plugin.Transports = append(plugin.Transports, t)
		}
		opts.Plugins = append(opts.Plugins, plugin)
	}
	return opts, nil
}

func (n Nodes) options() (*torrc.NodeFilterOptions, error) {
	parse := func(field string, values []string) ([]torrc.NodeSelector, error) {
		out := make([]torrc.NodeSelector, 0, len(values))
		for _, v := range values {
			sel, err := torrc.ParseNodeSelector(v)
			if err != nil {
				return nil, fmt.Errorf("nodes.%s: %w", field, err)
			}
			out = append(out, sel)
		}
		return out, nil
	}

	opts := &torrc.NodeFilterOptions{StrictNodes: n.Strict}
	var err error
	if opts.EntryNodes, err = parse("entry", n.Entry); err != nil {
		return nil, err
	}
	if opts.ExitNodes, err = parse("exit", n.Exit); err != nil {
		return nil, err
	}
	if opts.ExcludeNodes, err = parse("exclude", n.Exclude); err != nil {
		return nil, err
	}
	if opts.ExcludeExitNodes, err = parse("excludeExit", n.ExcludeExit); err != nil {
		return nil, err
	}
	return opts, nil
}

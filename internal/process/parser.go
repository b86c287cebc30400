package process

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var (
	// "Tor version 0.4.8.1." from --version, or
	// "... [notice] Tor 0.4.8.1 running on Linux with ..." at startup.
	versionPattern = regexp.MustCompile(`\bTor (?:version )?(?P<version>\d+(?:\.\d+){2,3}(?:-[\w-]+)?)`)

	// "Oct 18 10:00:00.000 [notice] message"
	logPattern = regexp.MustCompile(`^(?P<date>.+?) \[(?P<level>[a-z]+)\] (?P<message>.*)$`)

	// "Bootstrapped 45% (requesting_descriptors): Asking for relay descriptors"
	bootstrapPattern = regexp.MustCompile(`^Bootstrapped (?P<progress>\d{1,3})%(?: \((?P<tag>[^)]*)\))?: (?P<summary>.*)$`)
)

// logLine is a parsed tor log line.
type logLine struct {
	date    string
	level   string
	message string
}

// bootstrap is a parsed bootstrap message.
type bootstrap struct {
	progress int
	tag      string
	summary  string
}

func group(re *regexp.Regexp, m []string, name string) string {
	i := re.SubexpIndex(name)
	if i < 0 || i >= len(m) {
		return ""
	}
	return m[i]
}

func parseVersion(line string) (string, bool) {
	m := versionPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return group(versionPattern, m, "version"), true
}

func parseLogLine(line string) (logLine, bool) {
	m := logPattern.FindStringSubmatch(line)
	if m == nil {
		return logLine{}, false
	}
	return logLine{
		date:    group(logPattern, m, "date"),
		level:   group(logPattern, m, "level"),
		message: group(logPattern, m, "message"),
	}, true
}

func parseBootstrap(message string) (bootstrap, bool) {
	m := bootstrapPattern.FindStringSubmatch(message)
	if m == nil {
		return bootstrap{}, false
	}
	p, err := strconv.Atoi(group(bootstrapPattern, m, "progress"))
	if err != nil {
		return bootstrap{}, false
	}
	return bootstrap{
		progress: min(max(p, 0), 100),
		tag:      group(bootstrapPattern, m, "tag"),
		summary:  group(bootstrapPattern, m, "summary"),
	}, true
}

// slogLevel maps a tor severity to a slog level. Tor's info level is as
// noisy as debug, so both map to Debug.
func slogLevel(torLevel string) slog.Level {
	switch strings.ToLower(torLevel) {
	case "debug", "info":
		return slog.LevelDebug
	case "notice":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Package locator finds executables such as tor and its pluggable transports
// across the places an installation may have put them.
package locator

import (
	"iter"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// SearchPathProvider supplies candidate directories in priority order.
type SearchPathProvider interface {
	SearchPaths() []string
}

// SearchPathFunc adapts a function to SearchPathProvider.
type SearchPathFunc func() []string

// SearchPaths implements SearchPathProvider.
func (f SearchPathFunc) SearchPaths() []string { return f() }

// Locator resolves executable names to absolute paths.
type Locator struct {
	// OverrideEnv names an environment variable that, when it points at the
	// executable or at a directory containing it, takes precedence over every
	// other location. Empty disables the override.
	OverrideEnv string

	providers []SearchPathProvider
	getenv    func(string) string
	goos      string
}

// Option configures a Locator.
type Option func(*Locator)

// WithOverrideEnv sets the override environment variable name.
func WithOverrideEnv(name string) Option {
	return func(l *Locator) {
		l.OverrideEnv = name
	}
}

// WithProviders replaces the platform search roots.
func WithProviders(providers ...SearchPathProvider) Option {
	return func(l *Locator) {
		l.providers = providers
	}
}

// WithGetenv replaces os.Getenv, mainly for tests.
func WithGetenv(getenv func(string) string) Option {
	return func(l *Locator) {
		l.getenv = getenv
	}
}

// New returns a Locator using the platform's default search roots:
// install directory, native runtime sub-directories, system and OS
// directories, then PATH.
func New(opts ...Option) *Locator {
	l := &Locator{
		getenv: os.Getenv,
		goos:   runtime.GOOS,
	}
	l.providers = []SearchPathProvider{
		SearchPathFunc(installDirs),
		SearchPathFunc(func() []string { return nativeDirs(runtime.GOOS, runtime.GOARCH) }),
		SearchPathFunc(systemDirs),
		SearchPathFunc(func() []string { return filepath.SplitList(l.getenv("PATH")) }),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate yields every existing file named name, most preferred first. The
// sequence is lazy: directories are only examined as the caller pulls
// results, and it can be ranged over again to repeat the search. A missing
// executable yields nothing.
func (l *Locator) Locate(name string) iter.Seq[string] {
	file := executableName(name, l.goos)
	return func(yield func(string) bool) {
		seen := make(map[string]bool)
		emit := func(path string) bool {
			abs, err := filepath.Abs(path)
			if err != nil || seen[abs] || !isFile(abs) {
				return true
			}
			seen[abs] = true
			return yield(abs)
		}

		if p := l.override(file); p != "" {
			if !emit(p) {
				return
			}
		}
		for _, provider := range l.providers {
			for _, dir := range provider.SearchPaths() {
				if dir == "" {
					continue
				}
				if !emit(filepath.Join(dir, file)) {
					return
				}
			}
		}
	}
}

// First returns the most preferred match.
func (l *Locator) First(name string) (string, bool) {
	for p := range l.Locate(name) {
		return p, true
	}
	return "", false
}

func (l *Locator) override(file string) string {
	if l.OverrideEnv == "" {
		return ""
	}
	v := l.getenv(l.OverrideEnv)
	if v == "" {
		return ""
	}
	fi, err := os.Stat(v)
	if err != nil {
		return ""
	}
	if fi.IsDir() {
		return filepath.Join(v, file)
	}
	if sameName(filepath.Base(v), file, l.goos) {
		return v
	}
	return ""
}

func executableName(name, goos string) string {
	if goos == "windows" && !strings.EqualFold(filepath.Ext(name), ".exe") {
		return name + ".exe"
	}
	return name
}

func sameName(a, b, goos string) bool {
	if goos == "windows" || goos == "darwin" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

func installDirs() []string {
	exe, err := os.Executable()
	if err != nil {
		return nil
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return []string{filepath.Dir(exe)}
}

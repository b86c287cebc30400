package locator

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, executableName(name, runtime.GOOS))
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0700); err != nil { //nolint:gosec // test executable
		t.Fatal(err)
	}
	return path
}

func dirs(paths ...string) SearchPathProvider {
	return SearchPathFunc(func() []string { return paths })
}

func noEnv(string) string { return "" }

func TestLocateOrder(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")
	c := filepath.Join(root, "c")
	pa := touch(t, a, "tor")
	pc := touch(t, c, "tor")
	if err := os.MkdirAll(b, 0750); err != nil {
		t.Fatal(err)
	}

	l := New(WithProviders(dirs(a), dirs(b, c)), WithGetenv(noEnv))
	got := slices.Collect(l.Locate("tor"))
	want := []string{pa, pc}
	if !slices.Equal(got, want) {
		t.Errorf("Locate() = %v, want %v", got, want)
	}
}

func TestLocateMissingIsEmpty(t *testing.T) {
	t.Parallel()

	l := New(WithProviders(dirs(t.TempDir(), "", "/definitely/not/here")), WithGetenv(noEnv))
	if got := slices.Collect(l.Locate("tor")); len(got) != 0 {
		t.Errorf("expected no results, got %v", got)
	}
	if _, ok := l.First("tor"); ok {
		t.Error("First() reported a match")
	}
}

func TestLocateSkipsDirectoriesAndDuplicates(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	withDir := filepath.Join(root, "withdir")
	if err := os.MkdirAll(filepath.Join(withDir, executableName("tor", runtime.GOOS)), 0750); err != nil {
		t.Fatal(err)
	}
	realDir := filepath.Join(root, "real")
	p := touch(t, realDir, "tor")

	l := New(WithProviders(dirs(withDir, realDir, realDir)), WithGetenv(noEnv))
	got := slices.Collect(l.Locate("tor"))
	if !slices.Equal(got, []string{p}) {
		t.Errorf("Locate() = %v, want [%s]", got, p)
	}
}

func TestLocateOverride(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	std := filepath.Join(root, "std")
	custom := filepath.Join(root, "custom")
	pStd := touch(t, std, "tor")
	pCustom := touch(t, custom, "tor")

	t.Run("directory override is prepended", func(t *testing.T) {
		t.Parallel()

		env := map[string]string{"TOR_DIR": custom}
		l := New(
			WithOverrideEnv("TOR_DIR"),
			WithProviders(dirs(std)),
			WithGetenv(func(k string) string { return env[k] }),
		)
		got := slices.Collect(l.Locate("tor"))
		if !slices.Equal(got, []string{pCustom, pStd}) {
			t.Errorf("Locate() = %v", got)
		}
	})

	t.Run("file override is prepended", func(t *testing.T) {
		t.Parallel()

		env := map[string]string{"TOR_DIR": pCustom}
		l := New(
			WithOverrideEnv("TOR_DIR"),
			WithProviders(dirs(std)),
			WithGetenv(func(k string) string { return env[k] }),
		)
		first, ok := l.First("tor")
		if !ok || first != pCustom {
			t.Errorf("First() = %q, %v; want %q", first, ok, pCustom)
		}
	})

	t.Run("override pointing elsewhere is ignored", func(t *testing.T) {
		t.Parallel()

		env := map[string]string{"TOR_DIR": filepath.Join(root, "missing")}
		l := New(
			WithOverrideEnv("TOR_DIR"),
			WithProviders(dirs(std)),
			WithGetenv(func(k string) string { return env[k] }),
		)
		got := slices.Collect(l.Locate("tor"))
		if !slices.Equal(got, []string{pStd}) {
			t.Errorf("Locate() = %v", got)
		}
	})
}

func TestLocateIsLazyAndRestartable(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	p := touch(t, filepath.Join(root, "x"), "tor")
	calls := 0
	provider := SearchPathFunc(func() []string {
		calls++
		return []string{filepath.Join(root, "x")}
	})
	second := SearchPathFunc(func() []string {
		t.Error("second provider consulted after the caller stopped")
		return nil
	})

	l := New(WithProviders(provider, second), WithGetenv(noEnv))
	seq := l.Locate("tor")
	for range 2 {
		for got := range seq {
			if got != p {
				t.Errorf("got %q, want %q", got, p)
			}
			break
		}
	}
	if calls != 2 {
		t.Errorf("provider consulted %d times, want 2", calls)
	}
}

func TestRuntimeIdentifiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		goos, goarch string
		want         []string
	}{
		{"darwin", "arm64", []string{"osx-arm64", "osx-x64"}},
		{"darwin", "amd64", []string{"osx-x64"}},
		{"windows", "arm64", []string{"win-arm64", "win-x64", "win-x86"}},
		{"windows", "amd64", []string{"win-x64", "win-x86"}},
		{"linux", "amd64", []string{"linux-x64"}},
		{"plan9", "amd64", nil},
	}
	for _, tt := range tests {
		if got := runtimeIdentifiers(tt.goos, tt.goarch); !slices.Equal(got, tt.want) {
			t.Errorf("runtimeIdentifiers(%s, %s) = %v, want %v", tt.goos, tt.goarch, got, tt.want)
		}
	}
}

func TestExecutableName(t *testing.T) {
	t.Parallel()

	if got := executableName("tor", "windows"); got != "tor.exe" {
		t.Errorf("got %q", got)
	}
	if got := executableName("tor.EXE", "windows"); got != "tor.EXE" {
		t.Errorf("got %q", got)
	}
	if got := executableName("tor", "linux"); got != "tor" {
		t.Errorf("got %q", got)
	}
}

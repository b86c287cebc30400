package main

import (
	"net"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"testing"
)

var hashedPasswordPattern = regexp.MustCompile(`^16:[0-9A-F]{58}$`)

func TestHashPasswordCmd(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{name: "argument", args: []string{"hash-password", "s3cret"}},
		{name: "standard input", stdin: "s3cret\n", args: []string{"hash-password"}},
		{name: "standard input without newline", stdin: "s3cret", args: []string{"hash-password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stdout, _, err := executeRoot(t, tt.stdin, tt.args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := strings.TrimSpace(stdout); !hashedPasswordPattern.MatchString(got) {
				t.Errorf("unexpected hash %q", got)
			}
		})
	}

	t.Run("no input", func(t *testing.T) {
		t.Parallel()

		if _, _, err := executeRoot(t, "", "hash-password"); err == nil {
			t.Error("expected error without a password")
		}
	})
}

func TestPortCmd(t *testing.T) {
	t.Parallel()

	t.Run("prints a free port", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := executeRoot(t, "", "port", "20050")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		port, err := strconv.Atoi(strings.TrimSpace(stdout))
		if err != nil || port <= 0 || port > 65535 {
			t.Errorf("unexpected output %q", stdout)
		}
	})

	t.Run("skips a taken port", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		defer ln.Close()
		taken := ln.Addr().(*net.TCPAddr).Port

		stdout, _, err := executeRoot(t, "", "port", strconv.Itoa(taken))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.TrimSpace(stdout) == strconv.Itoa(taken) {
			t.Errorf("returned port %d is in use", taken)
		}
	})

	t.Run("invalid port", func(t *testing.T) {
		t.Parallel()

		for _, arg := range []string{"0", "70000", "abc"} {
			if _, _, err := executeRoot(t, "", "port", arg); err == nil {
				t.Errorf("port %s: expected error", arg)
			}
		}
	})
}

func TestTorrcCmd(t *testing.T) {
	t.Parallel()

	t.Run("renders a client torrc", func(t *testing.T) {
		t.Parallel()

		configPath, dir := writeTestConfig(t, "")
		if err := os.MkdirAll(filepath.Join(dir, "tor"), 0o700); err != nil {
			t.Fatal(err)
		}
		stdout, _, err := executeRoot(t, "", "torrc", "-c", configPath, "--socks-port", "19050", "--control-port", "19051")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{
			"SocksPort 127.0.0.1:19050",
			"ControlPort 127.0.0.1:19051",
			"HashedControlPassword 16:",
			"DataDirectory " + filepath.Join(dir, "tor"),
			"ClientOnly 1",
		} {
			if !strings.Contains(stdout, want) {
				t.Errorf("torrc missing %q:\n%s", want, stdout)
			}
		}
		if strings.Contains(stdout, "s3cret") {
			t.Error("torrc contains a plain password")
		}
	})

	t.Run("includes node filters", func(t *testing.T) {
		t.Parallel()

		configPath, _ := writeTestConfig(t, "nodes:\n  exit: [\"{de}\", \"{nl}\"]\n")
		stdout, _, err := executeRoot(t, "", "torrc", "-c", configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "ExitNodes {de},{nl}") {
			t.Errorf("torrc missing ExitNodes:\n%s", stdout)
		}
	})

	t.Run("refuses invalid entries", func(t *testing.T) {
		t.Parallel()

		configPath, _ := writeTestConfig(t, "geoipFile: /nonexistent/geoip\n")
		stdout, stderr, err := executeRoot(t, "", "torrc", "-c", configPath)
		if err == nil {
			t.Fatal("expected validation error")
		}
		if stdout != "" {
			t.Errorf("expected no torrc output, got %q", stdout)
		}
		if !strings.Contains(stderr, "error: GeoIPFile") {
			t.Errorf("expected issue on stderr, got %q", stderr)
		}
	})

	t.Run("force prints invalid entries", func(t *testing.T) {
		t.Parallel()

		configPath, _ := writeTestConfig(t, "geoipFile: /nonexistent/geoip\n")
		stdout, _, err := executeRoot(t, "", "torrc", "-c", configPath, "--force")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "GeoIPFile /nonexistent/geoip") {
			t.Errorf("torrc missing GeoIPFile:\n%s", stdout)
		}
	})
}

// TestLocateCmd changes the environment, so it does not run in parallel.
func TestLocateCmd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as the executable")
	}

	dir := t.TempDir()
	name := "torgate-test-tor"
	exe := filepath.Join(dir, name)
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o700); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TORGATE_TOR_DIR", dir)
	configPath, _ := writeTestConfig(t, "")

	t.Run("found in override directory", func(t *testing.T) {
		stdout, _, err := executeRoot(t, "", "locate", name, "-c", configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := strings.TrimSpace(stdout); got != exe {
			t.Errorf("locate = %q, want %q", got, exe)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, _, err := executeRoot(t, "", "locate", "torgate-test-missing", "-c", configPath)
		if err == nil || !strings.Contains(err.Error(), "TORGATE_TOR_DIR") {
			t.Errorf("expected not found error naming the override, got %v", err)
		}
	})
}

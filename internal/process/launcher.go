package process

import (
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Launcher starts an executable.
type Launcher interface {
	Launch(path string, args ...string) (Handle, error)
}

// Handle is a launched process. Stdout and Stderr must be drained before
// Wait is called.
type Handle interface {
	Stdout() io.Reader
	Stderr() io.Reader
	// Interrupt asks the process to shut down cleanly. It returns an error
	// where that is not possible, in which case the caller kills instead.
	Interrupt() error
	Kill() error
	Wait() error
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(path string, args ...string) (Handle, error)

// Launch implements Launcher.
func (f LauncherFunc) Launch(path string, args ...string) (Handle, error) {
	return f(path, args...)
}

// ExecLauncher launches executables with os/exec.
type ExecLauncher struct {
	// Env is appended to the current environment.
	Env []string
}

// Launch implements Launcher.
func (l ExecLauncher) Launch(path string, args ...string) (Handle, error) {
	cmd := exec.Command(path, args...) //nolint:gosec // path comes from the locator
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execHandle{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

type execHandle struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr io.Reader
}

func (h *execHandle) Stdout() io.Reader { return h.stdout }
func (h *execHandle) Stderr() io.Reader { return h.stderr }

// Interrupt sends os.Interrupt. On Windows this is unsupported and the
// returned error makes Stop fall through to Kill.
func (h *execHandle) Interrupt() error {
	return h.cmd.Process.Signal(os.Interrupt)
}

func (h *execHandle) Kill() error {
	return h.cmd.Process.Kill()
}

func (h *execHandle) Wait() error {
	return h.cmd.Wait()
}

// Package process exposes process control to scripts: shell commands,
// script arguments and sleeping.
package process

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"time"
)

// Process holds the per-run process state visible to scripts.
type Process struct {
	args   []string
	stdout io.Writer
	stderr io.Writer
}

// New creates a Process whose script arguments are args.
func New(args []string) *Process {
	return &Process{
		args:   append([]string(nil), args...),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// SetOutput redirects the output of commands started by System.
func (p *Process) SetOutput(stdout, stderr io.Writer) {
	p.stdout, p.stderr = stdout, stderr
}

// Args returns a copy of the script arguments.
func (p *Process) Args() []string {
	return append([]string(nil), p.args...)
}

// System runs cmd through the platform shell and returns its exit code.
// A command that could not be started returns -1 and the error.
func (p *Process) System(ctx context.Context, cmd string) (int, error) {
	var c *exec.Cmd
	if runtime.GOOS == "windows" {
		c = exec.CommandContext(ctx, "cmd", "/C", cmd)
	} else {
		c = exec.CommandContext(ctx, "sh", "-c", cmd)
	}
	c.Stdout = p.stdout
	c.Stderr = p.stderr
	c.Stdin = os.Stdin

	err := c.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr):
		return exitErr.ExitCode(), nil
	default:
		return -1, err
	}
}

// SleepFor blocks for seconds, or until ctx is done.
func (p *Process) SleepFor(ctx context.Context, seconds float64) error {
	if seconds <= 0 {
		return nil
	}
	t := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ExitError is raised by Exit so the host can unwind the script and
// terminate with Code after cleanup.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return "exit status " + strconv.Itoa(e.Code)
}

// Exit returns an *ExitError carrying code.
func (p *Process) Exit(code int) error {
	return &ExitError{Code: code}
}

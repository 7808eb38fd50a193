// Package exec abstracts running external tools (conda, redis-server) so the
// code driving them can be tested without the tools installed.
package exec

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// CommandExecutor runs an external command to completion.
type CommandExecutor interface {
	// Execute runs name with args and returns captured stdout and stderr.
	// A non-zero exit is reported as an *exec.ExitError.
	Execute(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)
}

// RealCommandExecutor executes commands with os/exec.
type RealCommandExecutor struct {
	// Dir is the working directory; empty means the current one.
	Dir string

	// Env is the full child environment; nil inherits the process environment.
	Env []string
}

// Execute runs an actual command.
func (r *RealCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	cmd.Env = r.Env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// DefaultExecutor returns the production executor.
func DefaultExecutor() CommandExecutor {
	return &RealCommandExecutor{}
}

// ExitCode returns the exit status carried by an Execute error, 0 for nil and
// -1 when the process never ran.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Describe renders an invocation for error messages.
func Describe(name string, args ...string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

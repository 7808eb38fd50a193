// Package execenv runs project commands inside the environment produced by
// preparing the project.
package execenv

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	kerrors "github.com/systmms/kapsel/internal/errors"
	"github.com/systmms/kapsel/internal/logging"
	kexec "github.com/systmms/kapsel/pkg/exec"
	"github.com/systmms/kapsel/pkg/requirement"
)

// Executor runs commands with a prepared environment.
type Executor struct {
	logger *logging.Logger
}

// New creates a new executor
func New(logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Executor{logger: logger}
}

// ExecOptions configures command execution
type ExecOptions struct {
	Command     []string            // argv; Command[0] is looked up in Environment's PATH
	Environment requirement.Environ // complete child environment
	PrintVars   []string            // variables to list, masked, before running
	WorkingDir  string
	Timeout     time.Duration // zero means no timeout

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Exec runs the command and returns its exit code. An error means the
// command could not be started at all.
func (e *Executor) Exec(ctx context.Context, options ExecOptions) (int, error) {
	if len(options.Command) == 0 {
		return 1, kerrors.UserError{
			Message:    "No command specified",
			Suggestion: "Name a command from kapsel.yml, or pass one after --",
		}
	}

	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	path, err := lookPath(options.Command[0], options.Environment)
	if err != nil {
		return 1, kerrors.WrapCommandNotFound(options.Command[0], err)
	}

	stdout := options.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	if len(options.PrintVars) > 0 {
		printEnvironment(stdout, options.Environment, options.PrintVars)
	}

	cmd := exec.CommandContext(ctx, path, options.Command[1:]...)
	cmd.Env = options.Environment.Slice()
	cmd.Dir = options.WorkingDir
	cmd.Stdin = options.Stdin
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	cmd.Stdout = stdout
	cmd.Stderr = options.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	e.logger.Debug("Executing command: %s", strings.Join(options.Command, " "))
	e.logger.Debug("Environment variables set: %d", len(options.Environment))

	err = cmd.Run()
	if code := kexec.ExitCode(err); code > 0 {
		return code, nil
	}
	if err != nil {
		return 1, kerrors.CommandError{
			Command:    strings.Join(options.Command, " "),
			Message:    err.Error(),
			Suggestion: "Check the command output above for details",
		}
	}
	return 0, nil
}

// lookPath resolves name against the PATH of the child environment, so a
// freshly prepared conda prefix is searched first.
func lookPath(name string, env requirement.Environ) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) {
		return exec.LookPath(name)
	}
	if p, ok := env.Lookup("PATH"); ok {
		for _, dir := range strings.Split(p, string(os.PathListSeparator)) {
			if dir == "" {
				continue
			}
			candidate := dir + string(os.PathSeparator) + name
			if found, err := exec.LookPath(candidate); err == nil {
				return found, nil
			}
		}
	}
	return exec.LookPath(name)
}

// printEnvironment lists names with masked values.
func printEnvironment(w io.Writer, environment requirement.Environ, names []string) {
	keys := append([]string(nil), names...)
	sort.Strings(keys)

	fmt.Fprintf(w, "Resolved %d environment variables:\n", len(keys))
	for _, key := range keys {
		fmt.Fprintf(w, "  %s=%s\n", key, maskValue(environment[key]))
	}
	fmt.Fprintln(w)
}

// maskValue masks a secret value for display
func maskValue(value string) string {
	if len(value) == 0 {
		return "(empty)"
	}
	if len(value) <= 3 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:1] + strings.Repeat("*", len(value)-2) + value[len(value)-1:]
	}
	return value[:3] + strings.Repeat("*", 8) + value[len(value)-2:]
}

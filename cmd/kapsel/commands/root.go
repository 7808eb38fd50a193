// Package commands implements the kapsel command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/kapsel/internal/config"
	"github.com/systmms/kapsel/internal/console"
	kerrors "github.com/systmms/kapsel/internal/errors"
	"github.com/systmms/kapsel/internal/localstate"
	"github.com/systmms/kapsel/internal/logging"
	"github.com/systmms/kapsel/internal/prepare"
	"github.com/systmms/kapsel/internal/providers"
	"github.com/systmms/kapsel/pkg/requirement"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// Deps are the process-level collaborators of the CLI. Tests replace them;
// zero fields mean the real thing.
type Deps struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Environ is the environment requirements are checked against.
	Environ requirement.Environ

	// Registry builds requirements and providers.
	Registry *providers.Registry

	// Prompter answers questions; nil means the terminal.
	Prompter requirement.Prompter

	// Secrets stores encrypted values; nil means the OS keyring.
	Secrets localstate.SecretStore

	// Getenv reads KAPSEL_* overrides; nil means os.LookupEnv.
	Getenv func(string) (string, bool)
}

func (d *Deps) withDefaults() {
	if d.Stdin == nil {
		d.Stdin = os.Stdin
	}
	if d.Stdout == nil {
		d.Stdout = os.Stdout
	}
	if d.Stderr == nil {
		d.Stderr = os.Stderr
	}
	if d.Environ == nil {
		d.Environ = requirement.FromOS()
	}
	if d.Getenv == nil {
		d.Getenv = os.LookupEnv
	}
}

// usageError marks a malformed invocation.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// exitError carries an exit code for a failure that was already reported.
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// usageArgs turns argument validation failures into usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// NewRootCommand builds the command tree.
func NewRootCommand(ctx context.Context, cfg *config.Config, deps *Deps, version string) *cobra.Command {
	var (
		noColor bool
		debug   bool
	)

	rootCmd := &cobra.Command{
		Use:   "kapsel",
		Short: "Actions on kapsels (runnable projects)",
		Long: `kapsel sets up everything a project directory needs before its commands
can run: a Conda environment, environment variables, downloaded files and
local services, all declared in kapsel.yml.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Logger = logging.New(debug, noColor).WithOutput(deps.Stderr)
			cfg.ApplyEnvironment(deps.Getenv)
			cfg.Secrets = deps.Secrets
			if deps.Prompter != nil {
				cfg.Prompter = deps.Prompter
			} else {
				cfg.Prompter = console.NewStdio(ctx, cfg.NonInteractive)
			}
		},
	}
	rootCmd.SetContext(ctx)
	rootCmd.SetIn(deps.Stdin)
	rootCmd.SetOut(deps.Stdout)
	rootCmd.SetErr(deps.Stderr)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	rootCmd.PersistentFlags().StringVar(&cfg.Directory, "directory", "", "Project directory containing kapsel.yml (defaults to current directory)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&cfg.NonInteractive, "non-interactive", false, "Never prompt for input")
	rootCmd.PersistentFlags().StringVar(&cfg.MetricsFile, "metrics-file", "", "Write Prometheus metrics of the run to this file")

	registry := deps.Registry
	if registry == nil {
		registry = providers.Default()
	}
	a := &app{cfg: cfg, deps: deps, registry: registry}

	rootCmd.AddCommand(
		NewInitCommand(a),
		NewPrepareCommand(a),
		NewRunCommand(a),
		NewCheckCommand(a),
		NewCleanCommand(a),
		NewAddVariableCommand(a),
		NewRemoveVariableCommand(a),
		NewListVariablesCommand(a),
		NewSetVariableCommand(a),
		NewUnsetVariableCommand(a),
		NewAddDownloadCommand(a),
		NewRemoveDownloadCommand(a),
		NewListDownloadsCommand(a),
		NewAddServiceCommand(a),
		NewRemoveServiceCommand(a),
		NewListServicesCommand(a),
		NewAddEnvSpecCommand(a),
		NewRemoveEnvSpecCommand(a),
		NewListEnvSpecsCommand(a),
		NewAddPackagesCommand(a),
		NewRemovePackagesCommand(a),
		NewListPackagesCommand(a),
		NewAddCommandCommand(a),
		NewRemoveCommandCommand(a),
		NewListCommandsCommand(a),
		NewCompletionCommand(a),
	)
	return rootCmd
}

// Execute runs args and returns the process exit code. Errors are printed to
// deps.Stderr.
func Execute(ctx context.Context, args []string, deps *Deps, version string) int {
	if deps == nil {
		deps = &Deps{}
	}
	deps.withDefaults()

	cfg := &config.Config{}
	rootCmd := NewRootCommand(ctx, cfg, deps, version)

	if len(args) == 0 {
		fmt.Fprintln(deps.Stderr, "Must specify a subcommand.")
		fmt.Fprint(deps.Stderr, rootCmd.UsageString())
		return ExitUsage
	}

	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if cfg.MetricsFile != "" && prepare.IsMetricsRegistered() {
		if werr := cfg.WriteMetrics(); werr != nil {
			fmt.Fprintf(deps.Stderr, "Failed to write metrics: %v\n", werr)
		}
	}
	return report(err, deps.Stderr)
}

func report(err error, stderr io.Writer) int {
	if err == nil {
		return ExitOK
	}

	var (
		exit    exitError
		usage   usageError
		project kerrors.ProjectError
	)
	switch {
	case kerrors.IsCanceled(err):
		fmt.Fprint(stderr, "\nCanceling\n\n")
		return ExitError
	case errors.As(err, &exit):
		return exit.code
	case errors.As(err, &usage),
		strings.HasPrefix(err.Error(), "unknown command"),
		strings.HasPrefix(err.Error(), "required flag"):
		fmt.Fprintln(stderr, err.Error())
		return ExitUsage
	case errors.As(err, &project):
		fmt.Fprintln(stderr, project.Error())
		return ExitError
	}
	fmt.Fprintln(stderr, kerrors.SimplifyError(err).Error())
	return ExitError
}

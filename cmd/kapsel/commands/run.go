package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	kerrors "github.com/systmms/kapsel/internal/errors"
	"github.com/systmms/kapsel/internal/execenv"
	"github.com/systmms/kapsel/internal/project"
	"github.com/systmms/kapsel/pkg/requirement"
)

// NewRunCommand prepares the project and runs one of its commands.
func NewRunCommand(a *app) *cobra.Command {
	var printVars bool

	cmd := &cobra.Command{
		Use:   "run [COMMAND_NAME] [EXTRA_ARGS...] | run -- PROGRAM [ARGS...]",
		Short: "Run the project, setting up requirements first",
		Long: `Run a command from kapsel.yml after preparing every requirement. Without a
name the command called "default" runs, or the first one declared.

Anything after -- is run as a program inside the prepared environment
instead of a named command.

Examples:
  kapsel run
  kapsel run notebook --port 8889
  kapsel run -- python -c 'import pandas'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, state, err := a.openProject()
			if err != nil {
				return err
			}
			defer state.Close()

			var adHoc []string
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				adHoc = args[dash:]
				args = args[:dash]
				if len(args) > 0 || len(adHoc) == 0 {
					return usageError{fmt.Errorf("run takes either a command name or a program after --")}
				}
			}

			var command *project.Command
			var extra []string
			if adHoc == nil {
				command, extra, err = pickCommand(p, args)
				if err != nil {
					return err
				}
				if command.EnvSpec != "" && a.cfg.EnvSpec == "" {
					a.cfg.EnvSpec = command.EnvSpec
				}
			}

			result, err := a.prepare(cmd.Context(), p, state, p.Requirements())
			if err != nil {
				return err
			}
			if result.Failed() {
				reportFailures(cmd.ErrOrStderr(), result)
				return exitError{ExitError}
			}

			argv := adHoc
			if command != nil {
				argv, err = command.Args(p.Dir(), extra)
				if err != nil {
					return err
				}
			}

			opts := execenv.ExecOptions{
				Command:     argv,
				Environment: projectEnviron(result.Environ, p),
				WorkingDir:  p.Dir(),
				Stdin:       cmd.InOrStdin(),
				Stdout:      cmd.OutOrStdout(),
				Stderr:      cmd.ErrOrStderr(),
			}
			if printVars {
				for _, r := range p.Requirements() {
					if r.Kind() != requirement.KindCondaEnv {
						opts.PrintVars = append(opts.PrintVars, r.EnvVar())
					}
				}
			}

			code, err := execenv.New(a.cfg.Logger).Exec(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if code != 0 {
				return exitError{code}
			}
			return nil
		},
	}
	addPrepareFlags(cmd, a.cfg)
	cmd.Flags().BoolVar(&printVars, "print", false, "Print the project variables (values masked) before running")
	// extra arguments belong to the project command, not to kapsel
	cmd.Flags().SetInterspersed(false)
	return cmd
}

// pickCommand finds the named command, or the default one when args is
// empty, and returns the remaining arguments.
func pickCommand(p *project.Project, args []string) (*project.Command, []string, error) {
	if len(args) == 0 {
		if c := p.DefaultCommand(); c != nil {
			return c, nil, nil
		}
		return nil, nil, kerrors.UserError{
			Message:    "No known run command for this project",
			Suggestion: "Add one with `kapsel add-command NAME COMMAND`",
		}
	}
	if c := p.Command(args[0]); c != nil {
		return c, args[1:], nil
	}
	return nil, nil, kerrors.UserError{
		Message:    fmt.Sprintf("Command name '%s' is not in %s", args[0], p.Manifest().Path()),
		Suggestion: "Run `kapsel list-commands` to see the available commands",
	}
}

// projectEnviron adds the variables every project command sees.
func projectEnviron(env requirement.Environ, p *project.Project) requirement.Environ {
	out := env.Clone()
	out["PROJECT_DIR"] = p.Dir()
	return out
}

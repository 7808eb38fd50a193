package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/kapsel/internal/prepare"
)

// NewPrepareCommand sets up every requirement without running anything.
func NewPrepareCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Set up the project requirements, but do not run the project",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, state, err := a.openProject()
			if err != nil {
				return err
			}
			defer state.Close()

			result, err := a.prepare(cmd.Context(), p, state, p.Requirements())
			if err != nil {
				return err
			}
			if result.Failed() {
				reportFailures(cmd.ErrOrStderr(), result)
				return exitError{ExitError}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "The project is ready to run commands.")
			fmt.Fprintln(cmd.OutOrStdout(), "Use `kapsel list-commands` to show what's available.")
			return nil
		},
	}
	addPrepareFlags(cmd, a.cfg)
	return cmd
}

// NewCheckCommand reports requirement status without changing anything.
func NewCheckCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Show the status of each project requirement without changing anything",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cfg.Mode = string(prepare.UIModeCheck)
			p, state, err := a.openProject()
			if err != nil {
				return err
			}
			defer state.Close()

			result, err := a.prepare(cmd.Context(), p, state, p.Requirements())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "VARIABLE\tKIND\tSTATUS\tDETAILS")
			for _, status := range result.Statuses {
				state := "ok"
				if !status.Satisfied() {
					state = "missing"
				}
				req := status.Requirement()
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", req.EnvVar(), req.Kind(), state, status.Description())
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if result.Failed() {
				return exitError{ExitError}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&a.cfg.EnvSpec, "env-spec", "", "An environment spec name from kapsel.yml")
	cmd.Flags().DurationVar(&a.cfg.CheckTimeout, "check-timeout", prepare.DefaultCheckTimeout, "Time allowed for checking one requirement")
	return cmd
}

// NewCleanCommand removes what prepare created.
func NewCleanCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove generated state (stops services, deletes environment files, etc)",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, state, err := a.openProject()
			if err != nil {
				return err
			}
			defer state.Close()

			result := prepare.Clean(cmd.Context(), p.Requirements(), a.checkInput(p, state), a.cfg.Logger)
			for _, line := range result.Logs {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			if result.Failed() {
				for _, line := range result.Errors {
					fmt.Fprintln(cmd.ErrOrStderr(), line)
				}
				return exitError{ExitError}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cleaned.")
			return nil
		},
	}
}

package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/kapsel/internal/providers"
	"github.com/systmms/kapsel/pkg/requirement"
)

// NewAddVariableCommand declares required environment variables.
func NewAddVariableCommand(a *app) *cobra.Command {
	var def string

	cmd := &cobra.Command{
		Use:   "add-variable VARS_TO_ADD...",
		Short: "Add a required environment variable to the project",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadProject()
			if err != nil {
				return err
			}
			var defaults map[string]string
			if cmd.Flags().Changed("default") {
				defaults = make(map[string]string, len(args))
				for _, name := range args {
					defaults[name] = def
				}
			}
			if err := p.AddVariables(args, defaults); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added variables to the project file: %s.\n", strings.Join(args, ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&def, "default", "", "Default value if the environment variable is unset")
	return cmd
}

// NewRemoveVariableCommand removes variables and their saved values.
func NewRemoveVariableCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-variable VARS_TO_REMOVE...",
		Short: "Remove an environment variable from the project",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, state, err := a.openProject()
			if err != nil {
				return err
			}
			defer state.Close()

			for _, name := range args {
				if p.FindRequirement(name) == nil {
					return fmt.Errorf("Variable %s does not exist in the project.", name)
				}
			}
			if err := p.RemoveVariables(args, state); err != nil {
				return err
			}
			if err := state.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed variables from the project file: %s.\n", strings.Join(args, ", "))
			return nil
		},
	}
}

// NewListVariablesCommand lists the declared variables.
func NewListVariablesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-variables",
		Short: "List all variables on the project",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadProject()
			if err != nil {
				return err
			}
			var rows [][2]string
			for _, r := range p.Requirements() {
				if r.Kind() == requirement.KindCondaEnv {
					continue
				}
				rows = append(rows, [2]string{r.EnvVar(), r.Description()})
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintf(out, "No variables found for project: %s\n\n", p.Dir())
				return nil
			}
			printTable(out, "Variables for project: "+p.Dir(), [2]string{"Name", "Description"}, rows)
			return nil
		},
	}
}

// NewSetVariableCommand stores values in the local state.
func NewSetVariableCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-variable NAME=VALUE...",
		Short: "Set an environment variable value in kapsel-local.yml",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, state, err := a.openProject()
			if err != nil {
				return err
			}
			defer state.Close()

			for _, arg := range args {
				parts := strings.SplitN(arg, "=", 2)
				if len(parts) != 2 || parts[0] == "" {
					return usageError{fmt.Errorf("Error: argument '%s' should be in NAME=value format", arg)}
				}
				req := p.FindRequirement(parts[0])
				if req == nil || req.Kind() == requirement.KindCondaEnv {
					return fmt.Errorf("Variable %s does not exist in the project.", parts[0])
				}
				if err := providers.SaveValue(req, state, parts[1]); err != nil {
					return err
				}
			}
			if err := state.Save(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Values saved in kapsel-local.yml.")
			return nil
		},
	}
}

// NewUnsetVariableCommand forgets values saved in the local state.
func NewUnsetVariableCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unset-variable VARS_TO_UNSET...",
		Short: "Unset an environment variable value from kapsel-local.yml",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, state, err := a.openProject()
			if err != nil {
				return err
			}
			defer state.Close()

			for _, name := range args {
				req := p.FindRequirement(name)
				if req == nil {
					return fmt.Errorf("Variable %s does not exist in the project.", name)
				}
				if err := providers.ForgetValue(req, state); err != nil {
					return err
				}
			}
			if err := state.Save(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Variables were unset.")
			return nil
		},
	}
}

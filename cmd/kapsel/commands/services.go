package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/kapsel/internal/prepare"
	"github.com/systmms/kapsel/pkg/requirement"
)

// NewAddServiceCommand declares a service.
func NewAddServiceCommand(a *app) *cobra.Command {
	var variable string

	cmd := &cobra.Command{
		Use:   "add-service SERVICE_TYPE",
		Short: "Add a service to be available before running commands",
		Long: fmt.Sprintf(`Add a service to be available before running commands.

Known service types: %s`, strings.Join(a.registry.ServiceTypeNames(), ", ")),
		Args:      usageArgs(cobra.ExactArgs(1)),
		ValidArgs: a.registry.ServiceTypeNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadProject()
			if err != nil {
				return err
			}
			name, err := p.AddService(args[0], variable)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added service %s to the project file, its address will be in %s.\n", args[0], name)
			return nil
		},
	}
	cmd.Flags().StringVar(&variable, "variable", "", "Environment variable that will hold the service address")
	return cmd
}

// NewRemoveServiceCommand stops a service kapsel started and removes it.
func NewRemoveServiceCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-service SERVICE_REFERENCE",
		Short: "Remove a service from the project",
		Long: `Remove a service from the project. The reference is either the variable
holding the service address or, when only one service has it, a service type.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, state, err := a.openProject()
			if err != nil {
				return err
			}
			defer state.Close()

			var targets []*requirement.Requirement
			for _, r := range requirementsOfKind(p, requirement.KindService) {
				if r.EnvVar() == args[0] || r.ServiceType() == args[0] {
					targets = append(targets, r)
				}
			}
			if len(targets) == 1 {
				cleaned := prepare.Clean(cmd.Context(), targets, a.checkInput(p, state), a.cfg.Logger)
				for _, line := range cleaned.Logs {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				for _, line := range cleaned.Errors {
					fmt.Fprintln(cmd.ErrOrStderr(), line)
				}
			}

			removed, err := p.RemoveService(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed service '%s' from the project file.\n", removed)
			return nil
		},
	}
}

// NewListServicesCommand lists the declared services.
func NewListServicesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-services",
		Short: "List services present in the project",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadProject()
			if err != nil {
				return err
			}
			var rows [][2]string
			for _, r := range requirementsOfKind(p, requirement.KindService) {
				rows = append(rows, [2]string{r.EnvVar(), r.Description()})
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintf(out, "No services found for project: %s\n", p.Dir())
				return nil
			}
			printTable(out, "Services for project: "+p.Dir(), [2]string{"Service", "Description"}, rows)
			return nil
		},
	}
}

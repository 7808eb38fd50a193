package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/kapsel/internal/project"
)

// NewAddEnvSpecCommand declares an env spec.
func NewAddEnvSpecCommand(a *app) *cobra.Command {
	var (
		name     string
		channels []string
	)

	cmd := &cobra.Command{
		Use:   "add-env-spec --name NAME [PACKAGES...]",
		Short: "Add a new environment spec to the project",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadProject()
			if err != nil {
				return err
			}
			if err := p.AddEnvSpec(name, args, channels); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added environment %s to the project file.\n", name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Name of the environment spec")
	cmd.Flags().StringArrayVarP(&channels, "channel", "c", nil, "Channel to search for packages")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// NewRemoveEnvSpecCommand removes an env spec and its environment.
func NewRemoveEnvSpecCommand(a *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "remove-env-spec --name NAME",
		Short: "Remove an environment spec from the project",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadProject()
			if err != nil {
				return err
			}
			if err := p.RemoveEnvSpec(name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed environment %s from the project file.\n", name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Name of the environment spec")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// NewListEnvSpecsCommand lists the env specs.
func NewListEnvSpecsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-env-specs",
		Short: "List all environment specs for the project",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadProject()
			if err != nil {
				return err
			}
			var rows [][2]string
			for _, spec := range p.EnvSpecs() {
				desc := strings.Join(project.SortedPackages(spec), " ")
				if spec.Name == p.DefaultEnvSpec() {
					desc = strings.TrimSpace("(default) " + desc)
				}
				rows = append(rows, [2]string{spec.Name, desc})
			}
			printTable(cmd.OutOrStdout(), "Environments for project: "+p.Dir(), [2]string{"Name", "Packages"}, rows)
			return nil
		},
	}
}

// NewAddPackagesCommand adds packages to one or all env specs.
func NewAddPackagesCommand(a *app) *cobra.Command {
	var (
		envSpec  string
		channels []string
	)

	cmd := &cobra.Command{
		Use:   "add-packages [--env-spec NAME] PACKAGES...",
		Short: "Add packages to one or all project environments",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadProject()
			if err != nil {
				return err
			}
			if err := p.AddPackages(envSpec, args, channels); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added packages to %s: %s\n", envSpecLabel(envSpec), strings.Join(args, " "))
			return nil
		},
	}
	cmd.Flags().StringVar(&envSpec, "env-spec", "", "An environment spec name from kapsel.yml; all of them when omitted")
	cmd.Flags().StringArrayVarP(&channels, "channel", "c", nil, "Channel to search for packages")
	return cmd
}

// NewRemovePackagesCommand removes packages from one or all env specs.
func NewRemovePackagesCommand(a *app) *cobra.Command {
	var envSpec string

	cmd := &cobra.Command{
		Use:   "remove-packages [--env-spec NAME] PACKAGE_NAME...",
		Short: "Remove packages from one or all project environments",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadProject()
			if err != nil {
				return err
			}
			if err := p.RemovePackages(envSpec, args); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed packages from %s: %s\n", envSpecLabel(envSpec), strings.Join(args, " "))
			return nil
		},
	}
	cmd.Flags().StringVar(&envSpec, "env-spec", "", "An environment spec name from kapsel.yml; all of them when omitted")
	return cmd
}

// NewListPackagesCommand lists the packages of one env spec.
func NewListPackagesCommand(a *app) *cobra.Command {
	var envSpec string

	cmd := &cobra.Command{
		Use:   "list-packages [--env-spec NAME]",
		Short: "List packages for an environment on the project",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadProject()
			if err != nil {
				return err
			}
			name := envSpec
			if name == "" {
				name = p.DefaultEnvSpec()
			}
			spec, ok := p.EnvSpecMap()[name]
			if !ok {
				return fmt.Errorf("Environment spec %s doesn't exist.", name)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Packages for environment '%s':\n\n", name)
			for _, pkg := range project.SortedPackages(spec) {
				fmt.Fprintln(out, pkg)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&envSpec, "env-spec", "", "An environment spec name from kapsel.yml")
	return cmd
}

func envSpecLabel(name string) string {
	if name == "" {
		return "all environments"
	}
	return "environment " + name
}

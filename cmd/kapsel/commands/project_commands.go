package commands

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/kapsel/internal/console"
	"github.com/systmms/kapsel/internal/project"
)

var commandTypeRetry = []string{
	"Please enter 'b', 'n', or 'c'.",
	"    A Bokeh app is the project-relative path to a Bokeh script or app directory.",
	"    A notebook file is the project-relative path to a .ipynb file.",
	"    A command line is any command you might type at the command prompt.",
}

// NewAddCommandCommand declares a project command.
func NewAddCommandCommand(a *app) *cobra.Command {
	var (
		typeName string
		envSpec  string
	)

	cmd := &cobra.Command{
		Use:   "add-command [--type TYPE] [--env-spec NAME] NAME COMMAND",
		Short: "Add a new command to the project",
		Long: fmt.Sprintf(`Add a new command to the project.

TYPE is one of %s. Without --type a .ipynb file is taken to be a
notebook; otherwise kapsel asks.`, strings.Join(commandTypeNames(), ", ")),
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, command := args[0], args[1]

			p, err := a.loadProject()
			if err != nil {
				return err
			}

			commandType, err := chooseCommandType(a, typeName, command)
			if err != nil {
				return err
			}
			if err := p.AddCommand(name, commandType, command, envSpec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added a command '%s' to the project. Run it with `kapsel run %s`.\n", name, name)
			return nil
		},
	}
	cmd.Flags().StringVar(&typeName, "type", "", "Command type to add: "+strings.Join(commandTypeNames(), ", "))
	cmd.Flags().StringVar(&envSpec, "env-spec", "", "An environment spec name from kapsel.yml")
	return cmd
}

func commandTypeNames() []string {
	names := make([]string, 0, len(project.CommandTypes)+1)
	for _, t := range project.CommandTypes {
		names = append(names, string(t))
	}
	return append(names, "ask")
}

// chooseCommandType resolves --type, guessing or asking when it is absent.
func chooseCommandType(a *app, typeName, command string) (project.CommandType, error) {
	if typeName != "" && typeName != "ask" {
		t, err := project.ParseCommandType(typeName)
		if err != nil {
			return "", usageError{err}
		}
		return t, nil
	}
	if typeName == "" && strings.HasSuffix(command, ".ipynb") {
		return project.CommandNotebook, nil
	}

	prompter := a.cfg.Prompter
	if prompter == nil || !prompter.IsInteractive() {
		return "", fmt.Errorf("Specify the --type option to add this command.")
	}

	shell := project.CommandUnix
	if runtime.GOOS == "windows" {
		shell = project.CommandWindows
	}
	answer, err := console.AskChoice(prompter,
		fmt.Sprintf("Is `%s` a (B)okeh app, (N)otebook, or (C)ommand line? ", command),
		[]console.Choice{
			{Key: "b", Value: string(project.CommandBokehApp)},
			{Key: "n", Value: string(project.CommandNotebook)},
			{Key: "c", Value: string(shell)},
		},
		commandTypeRetry)
	if err != nil {
		return "", err
	}
	return project.CommandType(answer), nil
}

// NewRemoveCommandCommand removes a declared command.
func NewRemoveCommandCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-command NAME",
		Short: "Remove a command from the project",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadProject()
			if err != nil {
				return err
			}
			if err := p.RemoveCommand(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed the command '%s' from the project.\n", args[0])
			return nil
		},
	}
}

// NewListCommandsCommand lists declared and auto-generated commands.
func NewListCommandsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-commands",
		Short: "List the commands on the project",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadProject()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			commands := p.Commands()
			if len(commands) == 0 {
				fmt.Fprintf(out, "No commands found for project: %s\n\n", p.Dir())
				return nil
			}
			rows := make([][2]string, 0, len(commands))
			for _, c := range commands {
				rows = append(rows, [2]string{c.Name, c.Description()})
			}
			printTable(out, "Commands for project: "+p.Dir(), [2]string{"Name", "Description"}, rows)
			return nil
		},
	}
}

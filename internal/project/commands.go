package project

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// CommandType is how a command is launched.
type CommandType string

const (
	CommandUnix     CommandType = "unix"
	CommandWindows  CommandType = "windows"
	CommandNotebook CommandType = "notebook"
	CommandBokehApp CommandType = "bokeh_app"
)

// CommandTypes lists the types in the order they are offered to users.
var CommandTypes = []CommandType{CommandBokehApp, CommandNotebook, CommandUnix, CommandWindows}

// ParseCommandType validates a --type value.
func ParseCommandType(s string) (CommandType, error) {
	for _, t := range CommandTypes {
		if string(t) == s {
			return t, nil
		}
	}
	names := make([]string, len(CommandTypes))
	for i, t := range CommandTypes {
		names[i] = string(t)
	}
	return "", fmt.Errorf("invalid command type %q (valid: %s)", s, strings.Join(names, ", "))
}

// Command is a named way to run the project.
type Command struct {
	Name          string
	Unix          string
	Windows       string
	Notebook      string
	BokehApp      string
	EnvSpec       string
	description   string
	AutoGenerated bool
}

// Description returns the manifest description or a summary of what runs.
func (c *Command) Description() string {
	switch {
	case c.description != "":
		return c.description
	case c.BokehApp != "":
		return "Bokeh app " + c.BokehApp
	case c.Notebook != "":
		return "Notebook " + c.Notebook
	case runtime.GOOS == "windows" && c.Windows != "":
		return c.Windows
	case c.Unix != "":
		return c.Unix
	}
	return c.Windows
}

// Args returns the argv that runs the command from projectDir, with extra
// arguments appended.
func (c *Command) Args(projectDir string, extra []string) ([]string, error) {
	switch {
	case c.Notebook != "":
		path := filepath.Join(projectDir, c.Notebook)
		args := []string{"jupyter-notebook", path, "--NotebookApp.default_url=/notebooks/" + filepath.ToSlash(c.Notebook)}
		return append(args, extra...), nil
	case c.BokehApp != "":
		args := []string{"bokeh", "serve", filepath.Join(projectDir, c.BokehApp), "--show"}
		return append(args, extra...), nil
	}

	if runtime.GOOS == "windows" {
		if c.Windows == "" {
			return nil, fmt.Errorf("command '%s' has no Windows command line", c.Name)
		}
		return []string{"cmd", "/c", joinShell(c.Windows, extra)}, nil
	}
	if c.Unix == "" {
		return nil, fmt.Errorf("command '%s' has no Unix command line", c.Name)
	}
	return []string{"/bin/sh", "-c", joinShell(c.Unix, extra)}, nil
}

func joinShell(line string, extra []string) string {
	if len(extra) == 0 {
		return line
	}
	quoted := make([]string, len(extra))
	for i, arg := range extra {
		quoted[i] = shellQuote(arg)
	}
	return line + " " + strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`;&|<>*?()[]{}!#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// parseCommand builds a command from its manifest mapping, returning the
// problem text on failure.
func parseCommand(name string, raw interface{}, envSpecs map[string]bool, defaultEnvSpec string) (*Command, string) {
	attrs, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Sprintf("command name '%s' should be followed by a dictionary", name)
	}

	cmd := &Command{Name: name}
	cmd.Unix, _ = attrs[string(CommandUnix)].(string)
	cmd.Windows, _ = attrs[string(CommandWindows)].(string)
	cmd.Notebook, _ = attrs[string(CommandNotebook)].(string)
	cmd.BokehApp, _ = attrs[string(CommandBokehApp)].(string)
	cmd.description, _ = attrs["description"].(string)
	cmd.EnvSpec, _ = attrs["env_spec"].(string)

	// unix and windows may be combined; the others stand alone
	var present []string
	for _, t := range []CommandType{CommandNotebook, CommandBokehApp, CommandUnix, CommandWindows} {
		if _, ok := attrs[string(t)]; ok {
			present = append(present, string(t))
		}
	}
	if len(present) == 0 {
		return nil, fmt.Sprintf("command '%s' does not have a command line in it", name)
	}
	if len(present) > 1 && (cmd.Notebook != "" || cmd.BokehApp != "") {
		return nil, fmt.Sprintf("command '%s' has multiple commands in it, '%s' can't go with '%s'", name, present[0], present[1])
	}

	if cmd.EnvSpec == "" {
		cmd.EnvSpec = defaultEnvSpec
	} else if !envSpecs[cmd.EnvSpec] {
		return nil, fmt.Sprintf("command '%s' uses env spec '%s' which does not exist", name, cmd.EnvSpec)
	}
	return cmd, ""
}

// notebookCommands returns a command for every .ipynb file in dir that no
// declared command already runs.
func notebookCommands(dir string, declared []*Command, defaultEnvSpec string) []*Command {
	matches, err := filepath.Glob(filepath.Join(dir, "*.ipynb"))
	if err != nil {
		return nil
	}
	sort.Strings(matches)

	used := make(map[string]bool)
	for _, c := range declared {
		used[c.Name] = true
		if c.Notebook != "" {
			used[filepath.Clean(c.Notebook)] = true
		}
	}

	var out []*Command
	for _, m := range matches {
		base := filepath.Base(m)
		if used[base] {
			continue
		}
		out = append(out, &Command{
			Name:          base,
			Notebook:      base,
			EnvSpec:       defaultEnvSpec,
			AutoGenerated: true,
		})
	}
	return out
}

package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/kapsel/internal/config"
	"github.com/systmms/kapsel/internal/localstate"
	"github.com/systmms/kapsel/internal/prepare"
	"github.com/systmms/kapsel/internal/project"
	"github.com/systmms/kapsel/internal/providers"
	"github.com/systmms/kapsel/pkg/requirement"
)

// app is what every subcommand shares.
type app struct {
	cfg      *config.Config
	deps     *Deps
	registry *providers.Registry
}

func (a *app) loadProject() (*project.Project, error) {
	return a.cfg.LoadProject(a.registry)
}

// openProject loads the project and its local state. The caller closes the
// state.
func (a *app) openProject() (*project.Project, *localstate.File, error) {
	p, err := a.loadProject()
	if err != nil {
		return nil, nil, err
	}
	state, err := a.cfg.OpenState(p)
	if err != nil {
		return nil, nil, err
	}
	return p, state, nil
}

func (a *app) checkInput(p *project.Project, state requirement.LocalState) requirement.CheckInput {
	return p.CheckInput(a.deps.Environ, state, a.cfg.Overrides())
}

// prepare resolves reqs with the configured mode.
func (a *app) prepare(ctx context.Context, p *project.Project, state requirement.LocalState, reqs []*requirement.Requirement) (*prepare.Result, error) {
	opts, err := a.cfg.PrepareOptions()
	if err != nil {
		return nil, err
	}
	return prepare.Run(ctx, reqs, a.checkInput(p, state), opts)
}

// addPrepareFlags registers the flags of commands that resolve requirements.
func addPrepareFlags(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().StringVar(&cfg.Mode, "mode", "", "One of "+strings.Join(prepare.UIModeNames(), ", ")+" (default "+string(prepare.DefaultUIMode)+")")
	cmd.Flags().StringVar(&cfg.EnvSpec, "env-spec", "", "An environment spec name from kapsel.yml")
	cmd.Flags().DurationVar(&cfg.CheckTimeout, "check-timeout", prepare.DefaultCheckTimeout, "Time allowed for checking one requirement")
}

// reportFailures prints why result is not ready.
func reportFailures(w io.Writer, result *prepare.Result) {
	for _, status := range result.Failures() {
		for _, e := range status.Errors() {
			fmt.Fprintln(w, e)
		}
		fmt.Fprintf(w, "missing requirement to run this project: %s\n", status.Requirement().Description())
		fmt.Fprintf(w, "  %s\n", status.Description())
	}
}

// printTable renders the two-column listing used by the list-* commands:
// a title line, a blank line, a header with "=" underlines, then rows.
func printTable(w io.Writer, title string, header [2]string, rows [][2]string) {
	width := len(header[0])
	for _, row := range rows {
		if len(row[0]) > width {
			width = len(row[0])
		}
	}
	width += 2

	fmt.Fprintf(w, "%s\n\n", title)
	fmt.Fprintf(w, "%-*s%s\n", width, header[0], header[1])
	fmt.Fprintf(w, "%-*s%s\n", width, strings.Repeat("=", len(header[0])), strings.Repeat("=", len(header[1])))
	for _, row := range rows {
		fmt.Fprintf(w, "%-*s%s\n", width, row[0], row[1])
	}
}

// requirementsOfKind filters the project requirements.
func requirementsOfKind(p *project.Project, kind requirement.Kind) []*requirement.Requirement {
	var out []*requirement.Requirement
	for _, r := range p.Requirements() {
		if r.Kind() == kind {
			out = append(out, r)
		}
	}
	return out
}

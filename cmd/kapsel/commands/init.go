package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	kerrors "github.com/systmms/kapsel/internal/errors"
	"github.com/systmms/kapsel/internal/project"
)

// NewInitCommand creates kapsel.yml in the project directory.
func NewInitCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a directory with default project configuration",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.ProjectDir()
			if err := os.MkdirAll(dir, 0755); err != nil {
				return kerrors.UserError{
					Message:    fmt.Sprintf("Project directory '%s' could not be created", dir),
					Details:    err.Error(),
					Suggestion: "Check the parent directory permissions",
					Err:        err,
				}
			}

			path := filepath.Join(dir, project.Filename)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				m, err := project.LoadManifest(path)
				if err != nil {
					return err
				}
				if err := m.Set(filepath.Base(dir), "name"); err != nil {
					return err
				}
				if err := m.Save(); err != nil {
					return err
				}
			}

			p, err := a.loadProject()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project configuration is in %s\n", p.Manifest().Path())
			return nil
		},
	}
}

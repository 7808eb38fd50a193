package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/kapsel/internal/prepare"
	"github.com/systmms/kapsel/pkg/requirement"
)

// NewAddDownloadCommand declares a file to download before running.
func NewAddDownloadCommand(a *app) *cobra.Command {
	var filename, hashAlgorithm, hashValue string

	cmd := &cobra.Command{
		Use:   "add-download ENV_VAR_FOR_FILENAME DOWNLOAD_URL",
		Short: "Add a URL to be downloaded before running commands",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadProject()
			if err != nil {
				return err
			}
			if err := p.AddDownload(args[0], args[1], filename, hashAlgorithm, hashValue); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s to the project file.\n", args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&filename, "filename", "", "The name to give the file/folder after downloading it")
	cmd.Flags().StringVar(&hashAlgorithm, "hash-algorithm", "", "Hash algorithm of --hash-value (md5, sha1, sha224, sha256, sha384, sha512)")
	cmd.Flags().StringVar(&hashValue, "hash-value", "", "The expected checksum hash of the downloaded file")
	return cmd
}

// NewRemoveDownloadCommand deletes the downloaded file and the declaration.
func NewRemoveDownloadCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-download ENV_VAR_FOR_FILENAME",
		Short: "Remove a download from the project and from the filesystem",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, state, err := a.openProject()
			if err != nil {
				return err
			}
			defer state.Close()

			req := p.FindRequirement(args[0])
			if req == nil || req.Kind() != requirement.KindDownload {
				return fmt.Errorf("Download requirement: %s not found.", args[0])
			}
			cleaned := prepare.Clean(cmd.Context(), []*requirement.Requirement{req}, a.checkInput(p, state), a.cfg.Logger)
			if cleaned.Failed() {
				for _, line := range cleaned.Errors {
					fmt.Fprintln(cmd.ErrOrStderr(), line)
				}
				return exitError{ExitError}
			}
			if err := p.RemoveDownload(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from the project file.\n", args[0])
			return nil
		},
	}
}

// NewListDownloadsCommand lists the declared downloads.
func NewListDownloadsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-downloads",
		Short: "List all downloads on the project",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadProject()
			if err != nil {
				return err
			}
			var rows [][2]string
			for _, r := range requirementsOfKind(p, requirement.KindDownload) {
				rows = append(rows, [2]string{r.EnvVar(), r.URL()})
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintf(out, "No downloads found in project.\n")
				return nil
			}
			printTable(out, "Downloads for project: "+p.Dir(), [2]string{"Name", "URL"}, rows)
			return nil
		},
	}
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/omdmaps/pipeline/deploy"
	"github.com/omdmaps/pipeline/mapdata"
)

func newDeployCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Push map data to the admin API",
		Long: `Push map data to the admin API configured by deploy.url and deploy.token
(API_URL and BEARER_TOKEN).

Examples:
  # Replace the whole catalogue
  mapctl deploy file official-map-data.json

  # Deploy only the sources touched by the last commit
  git diff --name-status HEAD~1 HEAD | mapctl deploy sources`,
	}

	cmd.AddCommand(newDeployFileCommand(opts))
	cmd.AddCommand(newDeploySourcesCommand(opts))
	return cmd
}

func newDeployFileCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "file [PATH]",
		Short: "Replace the catalogue with a whole map-data document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, rt *runtime) error {
				if len(args) == 1 {
					rt.cfg.Deploy.File = args[0]
				}
				if err := rt.cfg.RequireDeployFile(); err != nil {
					return err
				}
				ep := deploy.Endpoint{URL: rt.cfg.Deploy.URL, Token: rt.cfg.Deploy.Token}
				return rt.deployer().DeployFile(ctx, ep, rt.cfg.Deploy.File)
			})
		},
	}
}

func newDeploySourcesCommand(opts *options) *cobra.Command {
	var nameStatus, dir string

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Deploy changed source files as a partial update",
		Long: `Read "git diff --name-status" output and send the changed sources, plus
the IDs of deleted ones, to {deploy.url}/admin/sources as a partial update.
Nothing is sent when no source file changed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, func(ctx context.Context, rt *runtime) error {
				if err := rt.cfg.RequireDeploy(); err != nil {
					return err
				}
				if dir == "" {
					dir = rt.cfg.Deploy.Sources.Dir
				}
				if nameStatus == "" {
					nameStatus = rt.cfg.Deploy.Sources.NameStatus
				}

				changes, err := readChanges(cmd.InOrStdin(), nameStatus, dir)
				if err != nil {
					return err
				}
				ep := deploy.Endpoint{URL: rt.cfg.Deploy.URL, Token: rt.cfg.Deploy.Token}
				return rt.deployer().DeploySources(ctx, ep, changes)
			})
		},
	}

	cmd.Flags().StringVar(&nameStatus, "name-status", "", `File with "git diff --name-status" output, "-" for stdin (default: deploy.sources.namestatus)`)
	cmd.Flags().StringVar(&dir, "dir", "", "Directory holding source files (default: deploy.sources.dir)")
	return cmd
}

func readChanges(stdin io.Reader, path, dir string) (mapdata.Changes, error) {
	if path == "-" {
		return mapdata.ParseNameStatus(stdin, dir)
	}
	f, err := os.Open(path)
	if err != nil {
		return mapdata.Changes{}, fmt.Errorf("open name-status file: %w", err)
	}
	defer f.Close()
	return mapdata.ParseNameStatus(f, dir)
}

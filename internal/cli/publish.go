package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/omdmaps/pipeline/deploy"
)

func newPublishCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Promote content between environments",
	}
	cmd.AddCommand(newPublishQuickPlayCommand(opts))
	return cmd
}

func newPublishQuickPlayCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "quick-play",
		Short: "Copy prepared quick-play maps from staging to live",
		Long: `Fetch the prepared maps from staging and publish them to live. Requires
API_URL_STG, BEARER_TOKEN_STG, API_URL_LIVE and BEARER_TOKEN_LIVE (or the
publish section of config.yaml).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, func(ctx context.Context, rt *runtime) error {
				if err := rt.cfg.RequirePublish(); err != nil {
					return err
				}
				rt.log.Info().Msg("Starting to publish quick play maps...")

				n, err := rt.deployer().PublishQuickPlayMaps(ctx, deploy.PublishParams{
					Live:    deploy.Endpoint{URL: rt.cfg.Publish.Live.URL, Token: rt.cfg.Publish.Live.Token},
					Staging: deploy.Endpoint{URL: rt.cfg.Publish.Staging.URL, Token: rt.cfg.Publish.Staging.Token},
				})
				if err != nil {
					return err
				}
				rt.log.Info().Int("count", n).Msg("Successfully published quick play maps.")
				return nil
			})
		},
	}
}

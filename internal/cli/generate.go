package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/omdmaps/pipeline/mapdata"
)

const (
	defaultMapDataFile    = "official-map-data.json"
	defaultSourceListFile = "source-list.json"
	defaultSchemaFile     = "official-map-data.schema.json"
)

func newGenerateCommand(opts *options) *cobra.Command {
	var dir, out, sourceList string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Bundle every source file into one catalogue document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, func(ctx context.Context, rt *runtime) error {
				if dir == "" {
					dir = rt.cfg.Deploy.Sources.Dir
				}
				bundle, err := mapdata.Generate(ctx, dir)
				if err != nil {
					return err
				}
				if err := writeOutput(out, bundle.Data); err != nil {
					return err
				}
				if err := writeOutput(sourceList, bundle.SourceList); err != nil {
					return err
				}
				rt.log.Info().Str("file", out).Str("source_list", sourceList).Msg("JSON data has been generated successfully.")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory holding source files (default: deploy.sources.dir)")
	cmd.Flags().StringVar(&out, "out", defaultMapDataFile, "Catalogue output file")
	cmd.Flags().StringVar(&sourceList, "source-list", defaultSourceListFile, "Source list output file")
	return cmd
}

func newSchemaCommand(opts *options) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Write the JSON Schema of the catalogue document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, func(_ context.Context, rt *runtime) error {
				schema, err := mapdata.Schema()
				if err != nil {
					return err
				}
				if err := writeOutput(out, schema); err != nil {
					return err
				}
				rt.log.Info().Str("file", out).Msg("Schema has been generated successfully.")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&out, "out", defaultSchemaFile, "Schema output file")
	return cmd
}

func writeOutput(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

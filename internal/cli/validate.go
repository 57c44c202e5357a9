package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/omdmaps/pipeline/mapdata"
)

func newValidateCommand(opts *options) *cobra.Command {
	var catalogue bool

	cmd := &cobra.Command{
		Use:   "validate [PATH...]",
		Short: "Check source files or catalogue documents",
		Long: `Check source files against the catalogue rules: known source types, unique
chapter IDs and orders, unique map orders, token scales in (0, 1) and
well-formed S3 keys. Without arguments every source file in
deploy.sources.dir is checked. With --catalogue the arguments are whole
map-data documents, where source names must also be unique.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(_ context.Context, rt *runtime) error {
				paths := args
				if len(paths) == 0 {
					if catalogue {
						return errors.New("--catalogue needs at least one path")
					}
					var err error
					if paths, err = sourceFiles(rt.cfg.Deploy.Sources.Dir); err != nil {
						return err
					}
				}

				failed := 0
				for _, path := range paths {
					var err error
					if catalogue {
						_, err = mapdata.LoadCatalogue(path)
					} else {
						_, err = mapdata.LoadSource(path)
					}
					if err != nil {
						failed++
						rt.log.Warn().Str("file", path).Err(err).Msg("validation failed")
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d files failed validation", failed, len(paths))
				}
				rt.log.Info().Int("files", len(paths)).Msg("All files are valid.")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&catalogue, "catalogue", false, "Treat arguments as whole map-data documents")
	return cmd
}

func sourceFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read sources dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}

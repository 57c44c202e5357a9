// Package cli wires the mapctl commands to the deploy, publish and mapdata
// packages.
package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	logLevel   string
}

// NewRootCommand creates the mapctl command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "mapctl",
		Short: "Build, validate and deploy official map data",
		Long: `mapctl maintains the official map catalogue kept as per-source JSON files.

It validates and bundles the sources, deploys them to the admin API either
whole or as a partial update of changed sources, and promotes prepared
quick-play maps from staging to live.

Settings come from config.yaml, then environment variables (API_URL,
BEARER_TOKEN, SUMMON_ATTEMPTS, ...).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file (default: ./config.yaml when present)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	cmd.AddCommand(newDeployCommand(opts))
	cmd.AddCommand(newPublishCommand(opts))
	cmd.AddCommand(newGenerateCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newSchemaCommand(opts))
	return cmd
}

// loggedError marks errors already written to the structured log.
type loggedError struct {
	err error
}

func (e *loggedError) Error() string { return e.err.Error() }
func (e *loggedError) Unwrap() error { return e.err }

// ReportError writes err to w unless the command already logged it.
func ReportError(w io.Writer, err error) {
	var logged *loggedError
	if errors.As(err, &logged) {
		return
	}
	fmt.Fprintf(w, "mapctl: %v\n", err)
}

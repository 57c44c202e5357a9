package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omdmaps/pipeline/config"
	"github.com/omdmaps/pipeline/deploy"
	"github.com/omdmaps/pipeline/logger"
	"github.com/omdmaps/pipeline/observability"
	"github.com/omdmaps/pipeline/summon"
	"github.com/omdmaps/pipeline/trace"
)

// runtime holds what a command needs once configuration is loaded.
type runtime struct {
	cfg    *config.Config
	log    logger.Logger
	obs    observability.Provider
	client summon.Client
}

func newRuntime(cmd *cobra.Command, opts *options) (*runtime, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	log := logger.NewWithWriter(cmd.OutOrStdout(), cfg.Log.Level, cfg.Log.Pretty, nil).
		WithFields(map[string]any{"env": cfg.App.Env, "command": cmd.CommandPath()})

	obs, err := observability.NewProvider(&cfg.Observability)
	if err != nil {
		return nil, err
	}

	client, err := newClient(cfg.Summon, log, obs)
	if err != nil {
		_ = observability.Shutdown(cmd.Context(), obs, 0)
		return nil, err
	}
	return &runtime{cfg: cfg, log: log, obs: obs, client: client}, nil
}

// newClient builds the dispatcher every command shares from the summon
// config section.
func newClient(cfg config.SummonConfig, log logger.Logger, obs observability.Provider) (summon.Client, error) {
	b := summon.NewBuilder(log).
		WithTimeout(cfg.Timeout).
		WithBackoff(summon.BackoffOptions{
			NumOfAttempts: cfg.Attempts,
			StartingDelay: cfg.StartingDelay,
			TimeMultiple:  cfg.TimeMultiple,
			MaxDelay:      cfg.MaxDelay,
			Jitter:        summon.JitterType(cfg.Jitter),
		}).
		WithLogPayloads(cfg.LogPayloads, cfg.MaxPayloadLogBytes).
		WithMeterProvider(obs.MeterProvider()).
		WithTracerProvider(obs.TracerProvider())

	if cfg.CacheSize > 0 {
		cache, err := summon.NewResponseCache(cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("response cache: %w", err)
		}
		b.WithCache(cache)
	}
	return b.Build(), nil
}

func (rt *runtime) deployer() *deploy.Deployer {
	return deploy.New(rt.client, rt.log)
}

func (rt *runtime) close(ctx context.Context) {
	if err := observability.Shutdown(ctx, rt.obs, 0); err != nil {
		rt.log.Warn().Err(err).Msg("telemetry flush failed")
	}
}

// run loads the runtime and calls fn under a command span. All admin API
// calls made by fn share one request ID. Failures are logged at error level
// before they are returned.
func run(cmd *cobra.Command, opts *options, fn func(ctx context.Context, rt *runtime) error) error {
	rt, err := newRuntime(cmd, opts)
	if err != nil {
		return err
	}
	defer rt.close(cmd.Context())

	runID := trace.NewTraceID()
	ctx := trace.WithTraceID(cmd.Context(), runID)
	ctx, span := rt.obs.TracerProvider().Tracer("github.com/omdmaps/pipeline/cli").Start(ctx, cmd.CommandPath())
	defer span.End()

	if err := fn(ctx, rt); err != nil {
		span.RecordError(err)
		rt.log.Error().Err(err).Str("run_id", runID).Msg("command failed")
		return &loggedError{err: err}
	}
	return nil
}

// Package deploy pushes map data to the admin API and promotes prepared
// quick-play maps from staging to live.
package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/omdmaps/pipeline/logger"
	"github.com/omdmaps/pipeline/mapdata"
	"github.com/omdmaps/pipeline/summon"
)

// Endpoint is an admin API base URL and the bearer token it expects.
type Endpoint struct {
	URL   string
	Token string
}

// Backoff policies used when no override is set on the Deployer.
var (
	DefaultDeployBackoff = summon.BackoffOptions{
		NumOfAttempts: 3,
		StartingDelay: 500 * time.Millisecond,
		TimeMultiple:  2,
	}
	DefaultPublishBackoff = summon.BackoffOptions{
		NumOfAttempts: 5,
		StartingDelay: 500 * time.Millisecond,
		TimeMultiple:  2,
	}
)

const (
	fetchTimeout   = 20 * time.Second
	publishTimeout = 60 * time.Second
)

// Deployer runs the deploy and publish flows over a summon client.
type Deployer struct {
	client         summon.Client
	log            logger.Logger
	deployBackoff  summon.BackoffOptions
	publishBackoff summon.BackoffOptions
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithDeployBackoff replaces the policy of DeployFile and DeploySources.
func WithDeployBackoff(b summon.BackoffOptions) Option {
	return func(d *Deployer) { d.deployBackoff = b }
}

// WithPublishBackoff replaces the policy of PublishQuickPlayMaps.
func WithPublishBackoff(b summon.BackoffOptions) Option {
	return func(d *Deployer) { d.publishBackoff = b }
}

func New(client summon.Client, log logger.Logger, opts ...Option) *Deployer {
	d := &Deployer{
		client:         client,
		log:            log,
		deployBackoff:  DefaultDeployBackoff,
		publishBackoff: DefaultPublishBackoff,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// jsonRequest holds the options shared by every admin API call.
func jsonRequest(method, token string) []summon.Option {
	return []summon.Option{
		summon.WithMethod(method),
		summon.WithBearerToken(token),
		summon.WithHeader("Content-Type", "application/json"),
		summon.WithCache(summon.CacheNoStore),
	}
}

// DeployFile replaces the whole catalogue with the document at path.
// Non-2xx responses are retried like transport failures.
func (d *Deployer) DeployFile(ctx context.Context, ep Endpoint, path string) error {
	body, err := mapdata.LoadRaw(path)
	if err != nil {
		return err
	}
	d.log.Info().Str("file", path).Int("bytes", len(body)).Msg("Deploying map data")

	opts := append(jsonRequest(http.MethodPut, ep.Token),
		summon.WithBody(body),
		summon.WithRetryUntilOkay(true),
		summon.WithBackoff(d.deployBackoff),
	)
	resp, err := d.client.Summon(ctx, ep.URL, opts...)
	if err != nil {
		if failed, ok := summon.ResponseFromError(err); ok {
			return fmt.Errorf("deploy map data after %d attempts: %s: %w", d.deployBackoff.Attempts(), failed.ErrorMessage(), err)
		}
		return fmt.Errorf("deploy map data after %d attempts: %w", d.deployBackoff.Attempts(), err)
	}

	d.log.Info().Int("status", resp.StatusCode).Msgf("Success: API returned %d", resp.StatusCode)
	return nil
}

type sourcesPayload struct {
	Sources         []json.RawMessage `json:"sources"`
	SourcesToDelete []string          `json:"sourcesToDelete"`
	PartialUpdate   bool              `json:"partialUpdate"`
}

// DeploySources sends changed sources and the IDs of deleted ones as a
// partial update. Nothing is sent when changes is empty.
func (d *Deployer) DeploySources(ctx context.Context, ep Endpoint, changes mapdata.Changes) error {
	if changes.Empty() {
		d.log.Info().Msg("No source files to deploy.")
		return nil
	}
	if n := len(changes.Deleted); n > 0 {
		d.log.Info().Int("count", n).Msgf("Found %d deleted source files", n)
	}
	if n := len(changes.Changed); n > 0 {
		d.log.Info().Int("count", n).Msgf("Found %d changed source files to deploy", n)
	}

	files, err := mapdata.LoadSources(ctx, changes.Changed)
	if err != nil {
		return err
	}
	payload := sourcesPayload{
		Sources:         make([]json.RawMessage, 0, len(files)),
		SourcesToDelete: changes.DeletedIDs(),
		PartialUpdate:   true,
	}
	for _, f := range files {
		d.log.Info().Str("file", f.Path).Str("source", f.Source.Name).Msg("Loaded source data")
		payload.Sources = append(payload.Sources, f.Raw)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode sources payload: %w", err)
	}

	target, err := url.JoinPath(ep.URL, "admin", "sources")
	if err != nil {
		return fmt.Errorf("sources endpoint: %w", err)
	}
	opts := append(jsonRequest(http.MethodPut, ep.Token),
		summon.WithBody(body),
		summon.WithTimeout(0),
		summon.WithBackoff(d.deployBackoff),
	)
	resp, err := d.client.Summon(ctx, target, opts...)
	if err != nil {
		return fmt.Errorf("deploy sources after %d attempts: %w", d.deployBackoff.Attempts(), err)
	}
	if !resp.OK() {
		return fmt.Errorf("deploy sources after %d attempts: %s", d.deployBackoff.Attempts(), resp.ErrorMessage())
	}

	d.log.Info().
		Int("changed", len(payload.Sources)).
		Int("deleted", len(payload.SourcesToDelete)).
		Msg("Data deployed successfully.")
	return nil
}

package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/omdmaps/pipeline/summon"
)

// PublishParams names both ends of a quick-play publish.
type PublishParams struct {
	Live    Endpoint
	Staging Endpoint
}

// PublishQuickPlayMaps copies the prepared maps held by staging to live and
// returns how many were published. Live is not contacted if the staging
// fetch fails.
func (d *Deployer) PublishQuickPlayMaps(ctx context.Context, params PublishParams) (int, error) {
	maps, err := d.fetchPreparedMaps(ctx, params.Staging)
	if err != nil {
		return 0, err
	}
	d.log.Info().Int("count", len(maps)).Msgf("Fetched %d prepared maps from staging.", len(maps))

	d.log.Info().Msg("Publishing prepared maps to live...")
	body, err := json.Marshal(struct {
		PreparedMaps []json.RawMessage `json:"preparedMaps"`
	}{PreparedMaps: maps})
	if err != nil {
		return 0, fmt.Errorf("encode prepared maps: %w", err)
	}

	target, err := preparedMapsURL(params.Live)
	if err != nil {
		return 0, err
	}
	opts := append(jsonRequest(http.MethodPut, params.Live.Token),
		summon.WithBody(body),
		summon.WithTimeout(publishTimeout),
		summon.WithBackoff(d.publishBackoff),
	)
	resp, err := d.client.Summon(ctx, target, opts...)
	if err != nil {
		return 0, fmt.Errorf("failed to publish prepared maps to live: %w", err)
	}
	if !resp.OK() {
		return 0, fmt.Errorf("failed to publish prepared maps to live: %d %s", resp.StatusCode, resp.Status)
	}
	return len(maps), nil
}

func (d *Deployer) fetchPreparedMaps(ctx context.Context, staging Endpoint) ([]json.RawMessage, error) {
	target, err := preparedMapsURL(staging)
	if err != nil {
		return nil, err
	}
	opts := append(jsonRequest(http.MethodGet, staging.Token),
		summon.WithTimeout(fetchTimeout),
		summon.WithBackoff(d.publishBackoff),
	)
	resp, err := d.client.Summon(ctx, target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prepared maps from staging: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("failed to fetch prepared maps from staging: %d %s", resp.StatusCode, resp.Status)
	}

	var payload struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := resp.JSON(&payload); err != nil {
		return nil, fmt.Errorf("failed to fetch prepared maps from staging: %w", err)
	}
	if payload.Data == nil {
		return nil, errors.New("failed to fetch prepared maps from staging: response has no data array")
	}
	return payload.Data, nil
}

func preparedMapsURL(ep Endpoint) (string, error) {
	target, err := url.JoinPath(ep.URL, "admin", "prepared-maps")
	if err != nil {
		return "", fmt.Errorf("prepared maps endpoint: %w", err)
	}
	return target, nil
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{Name: "mapctl", Env: EnvCI},
		Log: LogConfig{Level: "info"},
		Summon: SummonConfig{
			Attempts:     3,
			TimeMultiple: 2,
			Jitter:       "none",
		},
		Deploy: DeployConfig{Sources: SourcesConfig{Dir: "sources"}},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		field    string
		category string
	}{
		{"missing app name", func(c *Config) { c.App.Name = "" }, "app.name", "missing"},
		{"unknown env", func(c *Config) { c.App.Env = "qa" }, "app.env", "invalid"},
		{"zero attempts", func(c *Config) { c.Summon.Attempts = 0 }, "summon.attempts", "invalid"},
		{"shrinking multiple", func(c *Config) { c.Summon.TimeMultiple = 0.5 }, "summon.timemultiple", "invalid"},
		{"negative timeout", func(c *Config) { c.Summon.Timeout = -1 }, "summon.timeout", "invalid"},
		{"unknown jitter", func(c *Config) { c.Summon.Jitter = "equal" }, "summon.jitter", "invalid"},
		{"relative deploy url", func(c *Config) { c.Deploy.URL = "admin" }, "deploy.url", "invalid"},
		{"bad live url", func(c *Config) { c.Publish.Live.URL = "::" }, "publish.live.url", "invalid"},
		{"missing sources dir", func(c *Config) { c.Deploy.Sources.Dir = "" }, "deploy.sources.dir", "missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Equal(t, tt.category, cfgErr.Category)
		})
	}

	assert.NoError(t, Validate(validConfig()))
}

func TestValidateOneOfListsOptions(t *testing.T) {
	cfg := validConfig()
	cfg.Log.Level = "trace"

	err := Validate(cfg)

	assert.EqualError(t, err, `config_invalid: log.level invalid value "trace" must be one of: debug, info, warn, error`)
}

func TestRequireDeploy(t *testing.T) {
	cfg := validConfig()
	assert.EqualError(t, cfg.RequireDeploy(),
		"config_missing: deploy.url required set API_URL env var or add deploy.url to config.yaml")

	cfg.Deploy.URL = "https://api.example.com"
	assert.ErrorContains(t, cfg.RequireDeploy(), "BEARER_TOKEN")

	cfg.Deploy.Token = "tkn"
	assert.NoError(t, cfg.RequireDeploy())
	assert.ErrorContains(t, cfg.RequireDeployFile(), "JSON_FILE_PATH")

	cfg.Deploy.File = "maps.json"
	assert.NoError(t, cfg.RequireDeployFile())
}

func TestRequirePublish(t *testing.T) {
	cfg := validConfig()
	assert.ErrorContains(t, cfg.RequirePublish(), "API_URL_STG")

	cfg.Publish.Staging = EndpointConfig{URL: "https://stg.example.com", Token: "s"}
	assert.ErrorContains(t, cfg.RequirePublish(), "API_URL_LIVE")

	cfg.Publish.Live.URL = "https://live.example.com"
	assert.ErrorContains(t, cfg.RequirePublish(), "BEARER_TOKEN_LIVE")

	cfg.Publish.Live.Token = "l"
	assert.NoError(t, cfg.RequirePublish())
}

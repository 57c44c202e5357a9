// Package config loads pipeline settings from defaults, an optional YAML file
// and the environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultFile is read when Load is called without a path. It is optional.
const DefaultFile = "config.yaml"

// legacyEnv maps the variable names CI already exports onto config keys.
var legacyEnv = map[string]string{
	"API_URL":           "deploy.url",
	"BEARER_TOKEN":      "deploy.token",
	"JSON_FILE_PATH":    "deploy.file",
	"API_URL_LIVE":      "publish.live.url",
	"API_URL_STG":       "publish.staging.url",
	"BEARER_TOKEN_LIVE": "publish.live.token",
	"BEARER_TOKEN_STG":  "publish.staging.token",
}

// sections limits generic environment mapping to keys this config knows.
var sections = []string{"app", "log", "summon", "deploy", "publish", "observability"}

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. YAML configuration file
// 3. Default values (lowest priority)
//
// An empty path reads DefaultFile when it exists. An explicit path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadFile(k, path); err != nil {
		return nil, err
	}

	envProvider := env.Provider(".", env.Opt{
		TransformFunc: func(name, value string) (string, any) {
			return envKey(name), value
		},
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.inheritAppIdentity()

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// envKey converts UPPER_CASE names to lower.case keys. Names outside the
// known sections are skipped.
func envKey(name string) string {
	if key, ok := legacyEnv[name]; ok {
		return key
	}
	key := strings.ReplaceAll(strings.ToLower(name), "_", ".")
	section, _, _ := strings.Cut(key, ".")
	for _, s := range sections {
		if section == s && key != s {
			return key
		}
	}
	return ""
}

// EnvVarFor returns the environment variable that sets key.
func EnvVarFor(key string) string {
	for name, k := range legacyEnv {
		if k == key {
			return name
		}
	}
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// inheritAppIdentity names exported telemetry after the app unless the
// observability section says otherwise.
func (c *Config) inheritAppIdentity() {
	if c.Observability.Service.Name == "" {
		c.Observability.Service.Name = c.App.Name
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = c.App.Env
	}
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name": "mapctl",
		"app.env":  EnvDevelopment,

		"log.level":  "info",
		"log.pretty": false,

		"summon.timeout":            "10s",
		"summon.attempts":           3,
		"summon.startingdelay":      "300ms",
		"summon.timemultiple":       2.0,
		"summon.maxdelay":           "0s",
		"summon.jitter":             "none",
		"summon.cachesize":          0,
		"summon.logpayloads":        false,
		"summon.maxpayloadlogbytes": 1024,

		"deploy.sources.dir":        "sources",
		"deploy.sources.namestatus": "-",

		"observability.enabled":  false,
		"observability.endpoint": "stdout",
		"observability.protocol": "http",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}


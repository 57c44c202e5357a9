package config

import (
	"time"

	"github.com/omdmaps/pipeline/observability"
)

// Config is the pipeline configuration. Deploy and Publish sections are only
// required by the commands that use them; see RequireDeploy and RequirePublish.
type Config struct {
	App     AppConfig     `koanf:"app" json:"app" yaml:"app"`
	Log     LogConfig     `koanf:"log" json:"log" yaml:"log"`
	Summon  SummonConfig  `koanf:"summon" json:"summon" yaml:"summon"`
	Deploy  DeployConfig  `koanf:"deploy" json:"deploy" yaml:"deploy"`
	Publish PublishConfig `koanf:"publish" json:"publish" yaml:"publish"`

	Observability observability.Config `koanf:"observability" json:"observability" yaml:"observability"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name string `koanf:"name" json:"name" yaml:"name" validate:"required"`
	Env  string `koanf:"env" json:"env" yaml:"env" validate:"oneof=development staging production ci"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// SummonConfig holds the dispatcher defaults shared by every command.
type SummonConfig struct {
	Timeout       time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gte=0"`
	Attempts      int           `koanf:"attempts" json:"attempts" yaml:"attempts" validate:"gte=1,lte=20"`
	StartingDelay time.Duration `koanf:"startingdelay" json:"startingdelay" yaml:"startingdelay" validate:"gte=0"`
	TimeMultiple  float64       `koanf:"timemultiple" json:"timemultiple" yaml:"timemultiple" validate:"gte=1"`
	MaxDelay      time.Duration `koanf:"maxdelay" json:"maxdelay" yaml:"maxdelay" validate:"gte=0"`
	Jitter        string        `koanf:"jitter" json:"jitter" yaml:"jitter" validate:"oneof=none full"`
	// CacheSize enables the GET response cache when positive.
	CacheSize int `koanf:"cachesize" json:"cachesize" yaml:"cachesize" validate:"gte=0"`
	// LogPayloads enables debug logging of request and response bodies.
	LogPayloads        bool `koanf:"logpayloads" json:"logpayloads" yaml:"logpayloads"`
	MaxPayloadLogBytes int  `koanf:"maxpayloadlogbytes" json:"maxpayloadlogbytes" yaml:"maxpayloadlogbytes" validate:"gte=0"`
}

// DeployConfig describes the admin API that receives map data.
type DeployConfig struct {
	URL   string `koanf:"url" json:"url" yaml:"url" validate:"omitempty,url"`
	Token string `koanf:"token" json:"-" yaml:"token"`
	// File is the whole map-data document pushed by "deploy file".
	File    string        `koanf:"file" json:"file" yaml:"file"`
	Sources SourcesConfig `koanf:"sources" json:"sources" yaml:"sources"`
}

// SourcesConfig locates per-source JSON files.
type SourcesConfig struct {
	Dir string `koanf:"dir" json:"dir" yaml:"dir" validate:"required"`
	// NameStatus is a file with `git diff --name-status` output, "-" for stdin.
	NameStatus string `koanf:"namestatus" json:"namestatus" yaml:"namestatus"`
}

// PublishConfig holds both ends of the quick-play publish flow.
type PublishConfig struct {
	Live    EndpointConfig `koanf:"live" json:"live" yaml:"live"`
	Staging EndpointConfig `koanf:"staging" json:"staging" yaml:"staging"`
}

// EndpointConfig is an admin API base URL and its bearer token.
type EndpointConfig struct {
	URL   string `koanf:"url" json:"url" yaml:"url" validate:"omitempty,url"`
	Token string `koanf:"token" json:"-" yaml:"token"`
}

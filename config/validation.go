package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
	EnvCI          = "ci"
)

var validate = newValidator()

// newValidator reports fields by their koanf path so errors match config.yaml.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the sections every command depends on.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return cfg.Observability.Validate()
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return fieldError(fieldErrs[0])
	}
	return err
}

func fieldError(fe validator.FieldError) *ConfigError {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch fe.Tag() {
	case "required":
		return NewMissingFieldError(field, EnvVarFor(field))
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value())), strings.Fields(fe.Param()))
	case "url":
		return NewInvalidFieldError(field, "must be an absolute URL", nil)
	default:
		return NewInvalidFieldError(field, fmt.Sprintf("%v violates %s=%s", fe.Value(), fe.Tag(), fe.Param()), nil)
	}
}

// RequireDeploy checks the settings needed to push map data.
func (c *Config) RequireDeploy() error {
	if c.Deploy.URL == "" {
		return NewMissingFieldError("deploy.url", EnvVarFor("deploy.url"))
	}
	if c.Deploy.Token == "" {
		return NewMissingFieldError("deploy.token", EnvVarFor("deploy.token"))
	}
	return nil
}

// RequireDeployFile additionally requires the map-data document path.
func (c *Config) RequireDeployFile() error {
	if err := c.RequireDeploy(); err != nil {
		return err
	}
	if c.Deploy.File == "" {
		return NewMissingFieldError("deploy.file", EnvVarFor("deploy.file"))
	}
	return nil
}

// RequirePublish checks both endpoints of the quick-play publish flow.
func (c *Config) RequirePublish() error {
	for _, f := range []struct{ key, value string }{
		{"publish.staging.url", c.Publish.Staging.URL},
		{"publish.staging.token", c.Publish.Staging.Token},
		{"publish.live.url", c.Publish.Live.URL},
		{"publish.live.token", c.Publish.Live.Token},
	} {
		if f.value == "" {
			return NewMissingFieldError(f.key, EnvVarFor(f.key))
		}
	}
	return nil
}

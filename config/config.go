package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Config of a batch endpoint.
type Config struct {
	// Service root every sub-request must resolve under.
	BaseURI string `mapstructure:"base_uri" validate:"required,url"`

	// Copied into every synthesized request untouched.
	ServiceResolutionURI string `mapstructure:"service_resolution_uri" validate:"omitempty,url"`

	// Require the blank line after every header block.
	Strict bool `mapstructure:"strict"`

	Listen     string        `mapstructure:"listen" validate:"required,hostname_port"`
	BatchPath  string        `mapstructure:"batch_path" validate:"required,startswith=/"`
	PingPeriod time.Duration `mapstructure:"ping_period" validate:"gt=0"`

	Logging Logging `mapstructure:"logging"`
}

type Logging struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

// Returns Config with usable defaults. BaseURI has none.
func Defaults() Config {
	return Config{
		Listen:     "localhost:3333",
		BatchPath:  "/$batch",
		PingPeriod: 30 * time.Second,
		Logging: Logging{
			Level: "info",
		},
	}
}

var validate = validator.New()

func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return errors.Wrap(err, "config")
	}
	return nil
}

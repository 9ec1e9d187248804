package config

import (
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix of the environment variables overriding file settings, i.e.
// OBATCH_BASE_URI or OBATCH_LOGGING_LEVEL.
const EnvPrefix = "OBATCH_"

// Keys that can be overridden from the environment.
var envKeys = [][]string{
	{"base_uri"},
	{"service_resolution_uri"},
	{"strict"},
	{"listen"},
	{"batch_path"},
	{"ping_period"},
	{"logging", "level"},
	{"logging", "development"},
}

// Load builds a Config from defaults, then YAML (raw wins over path, both
// optional), then environment variables. lookupEnv defaults to os.LookupEnv.
// The result is validated.
func Load(path string, raw []byte, lookupEnv func(string) (string, bool)) (Config, error) {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	if len(raw) == 0 && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "reading config")
		}
		raw = data
	}

	settings := map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return Config{}, errors.Wrap(err, "parsing config")
	}
	overlayEnv(settings, lookupEnv)

	cfg := Defaults()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &cfg,
	})
	if err != nil {
		return Config{}, errors.Wrap(err, "creating config decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return Config{}, errors.Wrap(err, "decoding config")
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overlayEnv(settings map[string]interface{}, lookupEnv func(string) (string, bool)) {
	for _, key := range envKeys {
		v, ok := lookupEnv(EnvPrefix + strings.ToUpper(strings.Join(key, "_")))
		if !ok {
			continue
		}
		m := settings
		for _, k := range key[:len(key)-1] {
			child, ok := m[k].(map[string]interface{})
			if !ok {
				child = map[string]interface{}{}
				m[k] = child
			}
			m = child
		}
		m[key[len(key)-1]] = v
	}
}

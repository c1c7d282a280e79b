package config

import (
	"github.com/arthur-debert/incr/pkg/errors"
	"github.com/pelletier/go-toml/v2"
)

// Render returns the configuration as TOML, as shown by `incr config`
func Render(cfg *Config) (string, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrInternal, "failed to render configuration")
	}
	return string(data), nil
}

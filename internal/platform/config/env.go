// Package config loads command settings from SKIRMISH_* environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every env tag parsed by ParseEnv.
const EnvPrefix = "SKIRMISH_"

// ParseEnv fills target from the environment. Tags name variables without
// the prefix: `env:"DB_PATH"` reads SKIRMISH_DB_PATH.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Package config loads the relay's runtime configuration from environment
// variables, matching the relay's existing go-simpler.org/env convention.
package config

import (
	"go-simpler.org/env"
)

// C holds the environment-derived settings for one relay process.
type C struct {
	DatabaseURL  string `env:"DATABASE_URL,required" usage:"postgres connection string"`
	RedisURL     string `env:"REDIS_URL" usage:"optional redis connection string for the whitelist cache"`
	Port         int    `env:"RELAY_PORT" default:"3001" usage:"port to listen on"`
	LogLevel     string `env:"LOG_LEVEL" default:"info" usage:"fatal error warn info debug trace"`
	AuthRequired bool   `env:"AUTH_REQUIRED" default:"false" usage:"advertise auth_required in the NIP-11 document; EVENT and REQ are served without AUTH either way"`
}

// Load reads C from the process environment.
func Load() (cfg *C, err error) {
	cfg = &C{}
	if err = env.Load(cfg, nil); err != nil {
		return nil, err
	}
	return cfg, nil
}

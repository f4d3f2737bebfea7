package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the server configuration, read from the environment.
type Config struct {
	// Addr is the listen address of the HTTP server.
	Addr string `env:"PLANK_ADDR" envDefault:":8080"`

	// TokenSecret signs and verifies the handshake tokens. The CRUD API
	// must be configured with the same secret.
	TokenSecret string `env:"PLANK_TOKEN_SECRET,required"`

	// TokenTTL bounds the lifetime of tokens issued by the auth helper.
	TokenTTL time.Duration `env:"PLANK_TOKEN_TTL" envDefault:"24h"`

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `env:"PLANK_LOG_LEVEL" envDefault:"info"`

	// LogPath appends logs to a file instead of stdout when set.
	LogPath string `env:"PLANK_LOG_PATH"`

	// ShutdownTimeout bounds the graceful drain on termination.
	ShutdownTimeout time.Duration `env:"PLANK_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LoadConfig reads the configuration from the process environment.
func LoadConfig() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("app: parse config: %w", err)
	}
	return c, nil
}

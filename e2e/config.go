package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_SERVER_ADDR points at a running instance (host:port). Tests
	// skip when it is empty.
	ServerAddr string `envconfig:"E2E_SERVER_ADDR"`
	// E2E_JWT_SECRET must match the instance's signing secret so the
	// suite can mint its own credentials.
	JWTSecret string `envconfig:"E2E_JWT_SECRET" default:"dev-secret"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}

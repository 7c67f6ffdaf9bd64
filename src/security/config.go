package security

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config has no defaults for key material. Unset keys are derived per machine.
type Config struct {
	CredentialsKey     string        `envconfig:"CREDENTIALS_KEY"`
	SessionTokenSecret string        `envconfig:"SESSION_TOKEN_SECRET"`
	SessionTokenTTL    time.Duration `envconfig:"SESSION_TOKEN_TTL" default:"2m"`
	APITokenSecret     string        `envconfig:"API_TOKEN_SECRET"`
	APITokenTTL        time.Duration `envconfig:"API_TOKEN_TTL" default:"720h"`
	Issuer             string        `envconfig:"TOKEN_ISSUER" default:"eabridge"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

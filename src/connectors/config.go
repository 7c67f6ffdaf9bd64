package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	SignalAPIURL string `envconfig:"SIGNAL_API_URL"`
	ScopePath    string `envconfig:"SIGNAL_SCOPE_PATH" default:"/api/get-ea-from-license"`
	SignalsPath  string `envconfig:"SIGNAL_POLL_PATH" default:"/api/get-new-signals"`
	// SignalSource selects "api" or "mock".
	SignalSource       string        `envconfig:"SIGNAL_SOURCE" default:"api"`
	MockSignalInterval time.Duration `envconfig:"MOCK_SIGNAL_INTERVAL" default:"30s"`
	MockSignalAsset    string        `envconfig:"MOCK_SIGNAL_ASSET" default:"XAUUSD"`

	LicenseAPIURL string `envconfig:"LICENSE_API_URL"`
	LicensePath   string `envconfig:"LICENSE_AUTH_PATH" default:"/api/auth-license"`

	HTTPTimeout       time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`
	RetryAttempts     int           `envconfig:"HTTP_RETRY_ATTEMPTS" default:"3"`
	RequestsPerSecond float64       `envconfig:"HTTP_REQUESTS_PER_SECOND" default:"2"`
	RequestBurst      int           `envconfig:"HTTP_REQUEST_BURST" default:"4"`

	TerminalURL         string        `envconfig:"TERMINAL_URL"`
	TerminalDialTimeout time.Duration `envconfig:"TERMINAL_DIAL_TIMEOUT" default:"10s"`
	TerminalWriteWait   time.Duration `envconfig:"TERMINAL_WRITE_WAIT" default:"5s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

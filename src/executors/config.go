package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LoopPeriod      time.Duration `envconfig:"POLL_INTERVAL" default:"10s"`
	// InitialLookback moves a new session's starting watermark back from the start time.
	// Zero means only signals updated after the session started are picked up.
	InitialLookback time.Duration `envconfig:"POLL_INITIAL_LOOKBACK" default:"0s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

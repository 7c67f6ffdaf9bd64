package dispatch

import (
	"fmt"
	"time"

	"eabridge/src/model"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AuthTimeoutMT4     time.Duration `envconfig:"AUTH_TIMEOUT_MT4" default:"120s"`
	AuthTimeoutMT5     time.Duration `envconfig:"AUTH_TIMEOUT_MT5" default:"30s"`
	OpenTimeout        time.Duration `envconfig:"OPEN_TIMEOUT" default:"20s"`
	VerifyInitialDelay time.Duration `envconfig:"VERIFY_INITIAL_DELAY" default:"3s"`
	VerifyInterval     time.Duration `envconfig:"VERIFY_INTERVAL" default:"2s"`
	VerifyMaxAttempts  int           `envconfig:"VERIFY_MAX_ATTEMPTS" default:"20"`
	StallTimeout       time.Duration `envconfig:"STALL_TIMEOUT" default:"60s"`
	ReleaseTimeout     time.Duration `envconfig:"RELEASE_TIMEOUT" default:"5s"`
	QueueCapacity      int           `envconfig:"DISPATCH_QUEUE_CAPACITY" default:"32"`
	MailboxSize        int           `envconfig:"DISPATCH_MAILBOX_SIZE" default:"64"`
	// SeenRetention is how long a dispatched signal id keeps later copies out.
	SeenRetention time.Duration `envconfig:"DISPATCH_SEEN_RETENTION" default:"72h"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

func (c Config) authTimeout(p model.Platform) time.Duration {
	if p == model.PlatformMT4 {
		return c.AuthTimeoutMT4
	}
	return c.AuthTimeoutMT5
}

// withDefaults fills zero values, so a partially built Config behaves like the env defaults.
func (c Config) withDefaults() Config {
	if c.AuthTimeoutMT4 <= 0 {
		c.AuthTimeoutMT4 = 120 * time.Second
	}
	if c.AuthTimeoutMT5 <= 0 {
		c.AuthTimeoutMT5 = 30 * time.Second
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 20 * time.Second
	}
	if c.VerifyInitialDelay <= 0 {
		c.VerifyInitialDelay = 3 * time.Second
	}
	if c.VerifyInterval <= 0 {
		c.VerifyInterval = 2 * time.Second
	}
	if c.VerifyMaxAttempts <= 0 {
		c.VerifyMaxAttempts = 20
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = 60 * time.Second
	}
	if c.ReleaseTimeout <= 0 {
		c.ReleaseTimeout = 5 * time.Second
	}
	if c.MailboxSize <= 0 {
		c.MailboxSize = 64
	}
	if c.SeenRetention <= 0 {
		c.SeenRetention = 72 * time.Hour
	}
	return c
}

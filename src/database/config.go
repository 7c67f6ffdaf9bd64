package database

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Driver is "sqlite" (local device store) or "postgres".
	Driver          string `envconfig:"DB_DRIVER" default:"sqlite"`
	DatabaseURLMain string `envconfig:"DATABASE_URL_MAIN" default:"eabridge.db?_busy_timeout=5000&_foreign_keys=on"`
	GormLogLevel    int    `envconfig:"GORM_LOG_LEVEL" default:"2"`
	MaxOpenConns    int    `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int    `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

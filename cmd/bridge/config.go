package bridge

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ServeAPI exposes the control API. Without it the bridge only resumes the persisted bot state.
	ServeAPI bool `envconfig:"SERVE_API" default:"true"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}

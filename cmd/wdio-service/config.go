package main

import (
	"github.com/kelseyhightower/envconfig"
)

// Config holds process-level configuration for the lifecycle HTTP surface,
// following cmd/config.Config's envconfig-tagged-struct shape.
type Config struct {
	Port          int    `envconfig:"PORT" default:"4723"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	ShutdownGrace int    `envconfig:"SHUTDOWN_GRACE_SECONDS" default:"10"`
}

func loadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("WDIO_SERVICE", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

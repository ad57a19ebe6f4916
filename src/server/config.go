package server

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"
)

type Config struct {
	Port string `envconfig:"PORT" default:"9898"`
}

// GetConfig falls back to the defaults when the environment is invalid.
func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		logger.WithError(fmt.Errorf("error processing env config: %w", err)).Warn("Using default server config")
		return &Config{Port: "9898"}
	}
	return &config
}

package capture

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DisplayErrors bool `envconfig:"LEDGER_DISPLAY_ERRORS" default:"false"`
}

func GetConfig() (Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return config, fmt.Errorf("error processing env config: %w", err)
	}
	return config, nil
}

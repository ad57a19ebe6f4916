package inspect

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerURL string `envconfig:"LEDGER_SERVER_URL"`
	Limit     int    `envconfig:"LEDGER_TOP_LIMIT" default:"50"`
}

func GetConfig() (*Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("error processing env config: %w", err)
	}
	return &config, nil
}

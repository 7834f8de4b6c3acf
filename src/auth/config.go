package auth

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// AgentKeyHash is the bcrypt hash of the shared key the execution
	// agent presents. Empty disables authentication (local development).
	AgentKeyHash string `envconfig:"AGENT_KEY_HASH" default:""`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

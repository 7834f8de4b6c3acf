package server

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"
)

type Config struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

var config *Config

func GetConfig() *Config {
	if config == nil {
		config = &Config{}
		if err := envconfig.Process("", config); err != nil {
			logger.WithError(err).Fatal("Failed to load server config")
		}
	}
	return config
}

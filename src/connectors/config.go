package connectors

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"
)

type Config struct {
	AuthorityBaseURL string        `envconfig:"AUTHORITY_BASE_URL" default:"http://localhost:8000"`
	AnalysisBaseURL  string        `envconfig:"ANALYSIS_BASE_URL" default:"http://localhost:8100"`
	AgentKey         string        `envconfig:"AGENT_KEY" default:""`
	RequestTimeout   time.Duration `envconfig:"CONNECTOR_TIMEOUT" default:"15s"`
	RetryCount       int           `envconfig:"CONNECTOR_RETRY_COUNT" default:"2"`
}

var config *Config

func GetConfig() *Config {
	if config == nil {
		config = &Config{}
		if err := envconfig.Process("", config); err != nil {
			logger.WithError(err).Fatal("Failed to load connector config")
		}
	}
	return config
}

package database

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Driver selects the backing store. The polling contract is identical
	// either way; sqlite keeps single-host deployments simple.
	Driver       string `envconfig:"DB_DRIVER" default:"sqlite"` // sqlite | postgres
	DatabaseURL  string `envconfig:"DATABASE_URL" default:""`
	SQLitePath   string `envconfig:"SQLITE_PATH" default:"data/trades.db"`
	GormLogLevel int    `envconfig:"GORM_LOG_LEVEL" default:"2"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

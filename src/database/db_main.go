package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradeanalyst/src/database/migrations"
	"tradeanalyst/src/model"
)

// MainDB is the primary read/write database connection used by the authority.
var MainDB *gorm.DB

// InitMainDB opens the durable trade store and runs migrations. Must be
// called once at startup before any repository is created.
func InitMainDB() error {
	config := GetConfig()

	gormConfig := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
	}

	var (
		db  *gorm.DB
		err error
	)

	switch config.Driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(config.DatabaseURL), gormConfig)
	case "sqlite":
		if mkErr := os.MkdirAll(filepath.Dir(config.SQLitePath), 0o755); mkErr != nil {
			return fmt.Errorf("failed to create sqlite directory: %w", mkErr)
		}
		db, err = gorm.Open(sqlite.Open(config.SQLitePath), gormConfig)
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", config.Driver)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB from GORM: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	MainDB = db

	logrus.WithField("driver", config.Driver).Info("[database] MainDB connection established")

	if err := MainDB.AutoMigrate(
		&model.TradeRecord{},
	); err != nil {
		return fmt.Errorf("failed to run migrations on MainDB: %w", err)
	}

	if err := migrations.Run(MainDB); err != nil {
		return fmt.Errorf("failed to run data migrations on MainDB: %w", err)
	}

	logrus.Info("[database] MainDB migrations completed")

	return nil
}

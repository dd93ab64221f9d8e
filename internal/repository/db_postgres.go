package repository

import (
	"fmt"

	"github.com/nsvirk/gitcoderapi/internal/config"
	"github.com/nsvirk/gitcoderapi/internal/models"
	"github.com/nsvirk/gitcoderapi/pkg/utils/zaplogger"
	"github.com/rotisserie/eris"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormLogLevel maps the configured database log level to a gorm level
func GormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// ConnectPostgres connects to a Postgres database and returns a GORM database object
func ConnectPostgres(cfg *config.Config) (*gorm.DB, error) {
	zaplogger.Info(config.SingleLine)
	zaplogger.Info("Initializing Postgres")
	zaplogger.Info(config.SingleLine)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(GormLogLevel(cfg.PostgresLogLevel)),
	}

	// Open database connection
	postgresDSN := fmt.Sprintf("%s search_path=%s,public", cfg.PostgresDsn, cfg.PostgresSchema)
	db, err := gorm.Open(postgres.Open(postgresDSN), gormConfig)
	if err != nil {
		return nil, eris.Wrap(err, "failed to connect to Postgres")
	}

	zaplogger.Info("  * connected")

	// Create the schema if it doesn't exist
	createSchemaSql := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %q", cfg.PostgresSchema)
	if err := db.Exec(createSchemaSql).Error; err != nil {
		return nil, eris.Wrapf(err, "failed to create schema %q", cfg.PostgresSchema)
	}
	zaplogger.Info("  * migrating scheme: \"" + cfg.PostgresSchema + "\"")

	// AutoMigrate will create tables and add/modify columns
	if err := AutoMigrate(db); err != nil {
		return nil, eris.Wrap(err, "failed to auto migrate")
	}

	return db, nil
}

// AutoMigrate creates or updates the tables owned by the API
func AutoMigrate(db *gorm.DB) error {
	tables := []struct {
		name  string
		model interface{}
	}{
		{models.CommitAuditsTableName, &models.CommitAuditModel{}},
	}

	zaplogger.Info("  * migrating tables")
	for _, table := range tables {
		if err := db.AutoMigrate(table.model); err != nil {
			return eris.Wrapf(err, "failed to auto migrate table %s", table.name)
		}
		zaplogger.Info("    - \"" + table.name + "\"")
	}

	return nil
}

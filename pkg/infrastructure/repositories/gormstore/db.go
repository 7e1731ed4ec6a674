// Package gormstore persists the catalog, runs, operations and resources
// through gorm on PostgreSQL or SQLite.
package gormstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/vsinha/prodplan/pkg/infrastructure/config"
	"github.com/vsinha/prodplan/pkg/infrastructure/logging"
)

// Open connects to the configured database. SQLite goes through the pure-Go
// modernc driver so no cgo toolchain is needed.
func Open(cfg config.DatabaseConfig, logger *logging.Logger) (*gorm.DB, error) {
	logger = logging.OrNop(logger)

	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite", "":
		conn, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite %s: %w", cfg.DSN, err)
		}
		dialector = sqlite.Dialector{DriverName: "sqlite", Conn: conn}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormLog := gormLogger.New(
		gormWriter{logger: logger.With("component", "gorm")},
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	logger.Info("database connected", "driver", cfg.Driver)
	return db, nil
}

// AutoMigrate creates or updates every table the store uses
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ProductModel{},
		&BOMModel{},
		&BOMLineModel{},
		&RoutingModel{},
		&RoutingOperationModel{},
		&InventoryModel{},
		&SupplyModel{},
		&ResourceModel{},
		&RunModel{},
		&OperationModel{},
	)
}

// gormWriter routes gorm's warnings into the application logger
type gormWriter struct {
	logger *logging.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.logger.Warn(fmt.Sprintf(format, args...))
}

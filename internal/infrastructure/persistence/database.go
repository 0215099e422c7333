package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/academy/backend/internal/infrastructure/config"
	"github.com/academy/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database owns the postgres pool shared by the fee repositories
type Database struct {
	DB *gorm.DB
}

// NewDatabase opens the postgres connection pool. SQL is logged through
// zap at the level named by cfg.LogLevel.
func NewDatabase(cfg *config.DatabaseConfig, log *zap.Logger) (*Database, error) {
	if log == nil {
		log = zap.NewNop()
	}
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.LogLevel))
	return openDatabase(postgres.Open(cfg.DSN()), cfg, gormLog)
}

func openDatabase(dialector gorm.Dialector, cfg *config.DatabaseConfig, gormLog gormlogger.Interface) (*Database, error) {
	// Ledger writes open their own transactions through the transaction
	// scope. The pool is pinged below once it is sized.
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLog,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		DisableAutomaticPing:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db}, nil
}

// SQLDB returns the pool under gorm, e.g. for the migrator.
func (d *Database) SQLDB() (*sql.DB, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB, nil
}

// Ping checks the pool can still reach postgres. Used by the readiness check.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.SQLDB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close logs the final pool counters and closes the pool.
func (d *Database) Close(log *zap.Logger) error {
	sqlDB, err := d.SQLDB()
	if err != nil {
		return err
	}
	if log != nil {
		stats := sqlDB.Stats()
		log.Info("Closing database pool",
			zap.Int("open", stats.OpenConnections),
			zap.Int64("wait_count", stats.WaitCount),
			zap.Duration("wait_duration", stats.WaitDuration),
		)
	}
	return sqlDB.Close()
}

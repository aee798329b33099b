package repository

import (
	"context"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/leora-hq/leora-core/internal/common"
	"github.com/leora-hq/leora-core/internal/entity"
)

// Open connects to Postgres and configures the underlying pool.
func Open(ctx context.Context, cfg common.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	log.Info("connecting to database")
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		return nil, err
	}

	log.Info("successfully connected to database")
	return db, nil
}

// Migrate creates or updates the schema for all entities.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.Tenant{},
		&entity.Customer{},
		&entity.CustomerAddress{},
		&entity.Sku{},
		&entity.Order{},
		&entity.OrderLine{},
		&entity.Invoice{},
		&entity.ImageScan{},
		&entity.ImportBatch{},
		&entity.Job{},
	)
}

// Close closes the database connection gracefully
func Close(db *gorm.DB, log *slog.Logger) {
	log.Info("closing database connection")
	sqlDB, err := db.DB()
	if err != nil {
		log.Error("failed to get sql.DB for close", "error", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Error("failed to close database", "error", err)
	}
}

// HealthCheck pings the database to catch DSN issues early.
func HealthCheck(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

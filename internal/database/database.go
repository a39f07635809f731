package database

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mayank-tagline555/sooq-billing/internal/config"
	"github.com/mayank-tagline555/sooq-billing/internal/models"
)

var DB *gorm.DB

func Connect(cfg *config.Config) error {
	var err error
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	slog.Info("database connected")
	return nil
}

// Migrate runs AutoMigrate for all billing models and installs the
// constraints AutoMigrate cannot express.
func Migrate() error {
	if err := DB.AutoMigrate(
		&models.Business{},
		&models.PlanTemplate{},
		&models.Subscription{},
		&models.BillingRecord{},
		&models.Transaction{},
		&models.ReconciliationLog{},
		&models.Wallet{},
		&models.AssetHolding{},
		&models.AssetSale{},
		&models.SystemLog{},
	); err != nil {
		return err
	}

	// One ACTIVE or TRIALING subscription per business. AutoMigrate has no
	// syntax for partial indexes, so this is raw SQL.
	return DB.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_one_open_subscription_per_business
		ON subscriptions (business_id)
		WHERE status IN ('ACTIVE', 'TRIALING')`).Error
}

func Ping() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

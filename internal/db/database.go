package db

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/config"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/metrics"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/models"
)

// InitDB opens the postgres database, migrates the schema and runs pending
// data migrations
func InitDB(cfg config.DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	log.Info("Connecting to database")

	database, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		DisableAutomaticPing:                     true,
		PrepareStmt:                              true,
		CreateBatchSize:                          1000,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		metrics.DBConnectionStatus.Set(0)
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		metrics.DBConnectionStatus.Set(0)
		return nil, fmt.Errorf("ping database: %w", err)
	}
	metrics.DBConnectionStatus.Set(1)
	log.Info("✅ Database connected successfully")

	log.Info("🚀 Starting database schema migration with GORM AutoMigrate...")
	if err := database.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	if err := RunDataMigrations(sqlDB, log); err != nil {
		return nil, err
	}

	log.Info("✅ Database schema migrated successfully")
	return database, nil
}

// Models every persisted model, in migration order
func Models() []interface{} {
	return []interface{}{
		&models.LevelPolicy{},
		&models.LevelRecord{},
		&models.VersionGate{},
		&models.Notification{},
		&models.NotificationCounter{},
		&models.SenderConfig{},
		&models.ReceiverConfig{},
		&models.TrustedRemote{},
		&models.OutboundMessage{},
		&models.InboundMessage{},
		&models.TokenBalance{},
		&models.TokenAllowance{},
		&models.TrustedSpender{},
		&models.AssetState{},
		&models.ItemHolding{},
	}
}

// WatchPool samples connection pool statistics until stop is closed
func WatchPool(database *gorm.DB, interval time.Duration, stop <-chan struct{}) {
	sqlDB, err := database.DB()
	if err != nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			metrics.DBConnectionOpen.Set(float64(sqlDB.Stats().OpenConnections))
			if err := sqlDB.Ping(); err != nil {
				metrics.DBConnectionStatus.Set(0)
			} else {
				metrics.DBConnectionStatus.Set(1)
			}
		}
	}
}

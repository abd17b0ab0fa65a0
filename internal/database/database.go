package database

import (
	"farmlink/config"
	"farmlink/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDB(cfg *config.DatabaseConfig, log logrus.FieldLogger) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), GormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if cfg.Tracing {
		if err := db.Use(otelgorm.NewPlugin()); err != nil {
			log.WithError(err).Warn("db connected but failed to install otelgorm plugin")
		}
	}
	return db, nil
}

// GormConfig is shared by the MySQL connection and the test databases so both
// translate driver errors (duplicate keys) the same way.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Error), // Only log errors, not every SQL query
		TranslateError: true,
	}
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Order{},
		&models.ReferralProfile{},
		&models.ReferralHistory{},
		&models.AuditLog{},
	)
}

package db

import (
	"fmt"

	"github.com/rs-labo46/ec-checkout/internal/config"
	"github.com/rs-labo46/ec-checkout/internal/domain/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
// unique違反を gorm.ErrDuplicatedKey に揃えるため TranslateError を有効にする。
func Connect(cfg config.Config) (*gorm.DB, error) {
	return Open(cfg.DSN())
}

func Open(dsn string) (*gorm.DB, error) {
	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return gormDB, nil
}

// Migrate はこのサービスが持つテーブルを作る。
func Migrate(gormDB *gorm.DB) error {
	return gormDB.AutoMigrate(
		&model.Product{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.InventoryAdjustment{},
		&model.AuditLog{},
	)
}

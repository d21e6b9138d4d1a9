package db

import (
	"fmt"

	"bookstore/internal/domain/model"

	"gorm.io/gorm"
)

// ACTIVEカートは持ち主ごとに1つだけ
var partialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_active_user ON carts (user_id) WHERE is_active = true`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_active_session ON carts (session_key) WHERE is_active = true`,
}

// テーブル作成とインデックス
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Genre{},
		&model.Book{},
		&model.InventoryAdjustment{},
		&model.AuditLog{},
		&model.Cart{},
		&model.CartItem{},
		&model.Review{},
		&model.UserProfile{},
		&model.Subscription{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	for _, stmt := range partialIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

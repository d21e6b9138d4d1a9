package repository

import (
	"context"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"gorm.io/gorm"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

// DI
func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

// TxManagerの中で呼ぶ前提。単独で呼んだ場合も更新と履歴は同じTx
func (r *InventoryGormRepository) Apply(ctx context.Context, adj *model.InventoryAdjustment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Book{}).
			Where("id = ? AND stock_quantity = ?", adj.BookID, adj.StockBefore).
			Update("stock_quantity", adj.StockAfter)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&model.Book{}).Where("id = ?", adj.BookID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return repo.ErrNotFound
			}
			return repo.ErrConflict
		}
		return tx.Create(adj).Error
	})
	return translateError(err)
}

func (r *InventoryGormRepository) History(ctx context.Context, bookID int64, limit int) ([]model.InventoryAdjustment, error) {
	if limit <= 0 || limit > maxAuditLimit {
		limit = defaultAuditLimit
	}
	var adjs []model.InventoryAdjustment
	err := r.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&adjs).Error
	return adjs, translateError(err)
}

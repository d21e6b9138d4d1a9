package repository

import (
	"bookstore/internal/domain/model"
	"context"
)

type InventoryRepository interface {
	// books.stock_quantityをStockBeforeからStockAfterへ付け替えて履歴を残す。
	// 現在値がStockBeforeと違えばErrConflict
	Apply(ctx context.Context, adj *model.InventoryAdjustment) error
	History(ctx context.Context, bookID int64, limit int) ([]model.InventoryAdjustment, error)
}

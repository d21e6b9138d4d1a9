package repository

import (
	"context"

	"bookstore/internal/domain/model"
	"github.com/shopspring/decimal"
)

type CartTotals struct {
	TotalPrice decimal.Decimal
	TotalItems int64
}

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	// 明細を FOR UPDATE でまとめてロックして返す
	LockByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	FindByCartAndBook(ctx context.Context, cartID int64, bookID int64) (model.CartItem, error)
	Create(ctx context.Context, item model.CartItem) (model.CartItem, error)
	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	DeleteByCartID(ctx context.Context, cartID int64) error
}

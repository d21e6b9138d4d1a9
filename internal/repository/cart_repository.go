package repository

import (
	"context"
	"time"

	"bookstore/internal/domain/model"
)

type CartRepository interface {
	FindByID(ctx context.Context, cartID int64) (model.Cart, error)
	FindActive(ctx context.Context, owner model.CartOwner) (model.Cart, error)
	// SELECT ... FOR UPDATE で取得。無ければ ErrNotFound
	LockActive(ctx context.Context, owner model.CartOwner) (model.Cart, error)
	// ACTIVEカートをロック付きで取得し、無ければ作成
	GetOrCreateActive(ctx context.Context, owner model.CartOwner) (model.Cart, error)
	Deactivate(ctx context.Context, cartID int64) error
	UpdateTotals(ctx context.Context, cartID int64, totals CartTotals) error
	// before より古い匿名ACTIVEカートを明細ごと削除
	DeleteStaleGuestCarts(ctx context.Context, before time.Time) (int64, error)
}

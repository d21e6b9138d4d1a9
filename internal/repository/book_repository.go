package repository

import (
	"context"

	"bookstore/internal/domain/model"
	"github.com/shopspring/decimal"
)

// 一覧の検索条件
type BookListQuery struct {
	GenreID        *int64
	MinPrice       *decimal.Decimal
	MaxPrice       *decimal.Decimal
	DiscountedOnly bool
	Sort           string // price_asc, price_desc, title, newest
	Page           int
	Limit          int
}

type BookRepository interface {
	// 公開済みのみ
	ListPublished(ctx context.Context, q BookListQuery) ([]model.Book, int64, error)
	// タイトルか著者の部分一致
	Search(ctx context.Context, query string, limit int) ([]model.Book, error)
	FindBySlug(ctx context.Context, slug string) (model.Book, error)
	FindByID(ctx context.Context, id int64) (model.Book, error)
	// 論理削除済みも含める（カートの表示用）
	FindByIDs(ctx context.Context, ids []int64) ([]model.Book, error)
	LockByID(ctx context.Context, id int64) (model.Book, error)
	// 論理削除済みも含めて確認する
	SlugExists(ctx context.Context, slug string) (bool, error)
	Create(ctx context.Context, b model.Book) (model.Book, error)
	Update(ctx context.Context, b model.Book) error
	SoftDelete(ctx context.Context, id int64) error
}

type GenreRepository interface {
	List(ctx context.Context) ([]model.Genre, error)
	FindByID(ctx context.Context, id int64) (model.Genre, error)
	FindByIDs(ctx context.Context, ids []int64) ([]model.Genre, error)
	Create(ctx context.Context, g model.Genre) (model.Genre, error)
}

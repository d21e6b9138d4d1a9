package repository

import (
	"context"

	"bookstore/internal/domain/model"
)

type ReviewRepository interface {
	// 新しい順。Usernameも埋める
	ListByBook(ctx context.Context, bookID int64, page int, limit int) ([]model.Review, int64, error)
	FindByID(ctx context.Context, id int64) (model.Review, error)
	// 同じユーザーが同じ本に2件目を書こうとしたら ErrConflict
	Create(ctx context.Context, r model.Review) (model.Review, error)
	Update(ctx context.Context, r model.Review) error
	Delete(ctx context.Context, id int64) error
	Summary(ctx context.Context, bookID int64) (model.RatingSummary, error)
}

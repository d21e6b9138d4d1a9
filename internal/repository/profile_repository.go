package repository

import (
	"context"

	"bookstore/internal/domain/model"
)

type ProfileRepository interface {
	Create(ctx context.Context, p model.UserProfile) (model.UserProfile, error)
	// お気に入りの本も一緒に読む
	FindByUserID(ctx context.Context, userID int64) (model.UserProfile, error)
	Update(ctx context.Context, p model.UserProfile) error
	UpdatePicture(ctx context.Context, userID int64, url string) error
	HasFavorite(ctx context.Context, profileID int64, bookID int64) (bool, error)
	AddFavorite(ctx context.Context, profileID int64, bookID int64) error
	RemoveFavorite(ctx context.Context, profileID int64, bookID int64) error
}

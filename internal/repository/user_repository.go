package repository

import (
	"bookstore/internal/domain/model"
	"context"
	"time"
)

type UserRepository interface {
	// email/usernameの重複はErrConflict
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	TouchLastLogin(ctx context.Context, userID int64, at time.Time) error
	// 発行済みaccess tokenを全て無効にする
	IncrementTokenVersion(ctx context.Context, userID int64) error
}

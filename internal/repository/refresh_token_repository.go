package repository

import (
	"bookstore/internal/domain/model"
	"context"
	"time"
)

// refresh tokenの永続化。見つからない場合はErrNotFound
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	// 旧tokenの使用済み化と後継の保存を1トランザクションで行う。
	// 旧tokenがすでに使われていた場合はErrConflict
	Rotate(ctx context.Context, oldID string, next *model.RefreshToken, at time.Time) error
	Revoke(ctx context.Context, tokenID string, at time.Time) error
	RevokeAllByUserID(ctx context.Context, userID int64, at time.Time) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

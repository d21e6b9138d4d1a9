package repository

import (
	"context"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"gorm.io/gorm"
)

type refreshTokenRepository struct {
	db *gorm.DB
}

// DI
func NewRefreshTokenRepository(db *gorm.DB) repo.RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	return translateError(r.db.WithContext(ctx).Create(token).Error)
}

func (r *refreshTokenRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	var t model.RefreshToken
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Take(&t).Error; err != nil {
		return nil, translateError(err)
	}
	return &t, nil
}

func (r *refreshTokenRepository) Rotate(ctx context.Context, oldID string, next *model.RefreshToken, at time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(next).Error; err != nil {
			return err
		}

		// 条件付きUPDATEで同時リフレッシュの片方だけを通す
		res := tx.Model(&model.RefreshToken{}).
			Where("id = ? AND used_at IS NULL AND revoked_at IS NULL", oldID).
			Updates(map[string]any{"used_at": at, "replaced_by": next.ID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repo.ErrConflict
		}
		return nil
	})
	return translateError(err)
}

func (r *refreshTokenRepository) Revoke(ctx context.Context, tokenID string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.RefreshToken{}).
		Where("id = ?", tokenID).
		Where("revoked_at IS NULL").
		Update("revoked_at", at)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 使用済みも含めて失効させる（行は監査のため残す）
func (r *refreshTokenRepository) RevokeAllByUserID(ctx context.Context, userID int64, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", at)
	return res.RowsAffected, translateError(res.Error)
}

func (r *refreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&model.RefreshToken{})
	return res.RowsAffected, translateError(res.Error)
}

package repository

import (
	"context"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"gorm.io/gorm"
)

type SubscriptionGormRepository struct {
	db *gorm.DB
}

// DI
func NewSubscriptionGormRepository(db *gorm.DB) *SubscriptionGormRepository {
	return &SubscriptionGormRepository{db: db}
}

func (r *SubscriptionGormRepository) FindByEmail(ctx context.Context, email string) (model.Subscription, error) {
	var s model.Subscription
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&s).Error; err != nil {
		return model.Subscription{}, translateError(err)
	}
	return s, nil
}

func (r *SubscriptionGormRepository) Create(ctx context.Context, s model.Subscription) (model.Subscription, error) {
	if err := r.db.WithContext(ctx).Create(&s).Error; err != nil {
		return model.Subscription{}, translateError(err)
	}
	return s, nil
}

func (r *SubscriptionGormRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res := r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("id = ?", id).
		Update("is_active", active)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *SubscriptionGormRepository) ListActive(ctx context.Context) ([]model.Subscription, error) {
	var subs []model.Subscription
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id asc").
		Find(&subs).Error; err != nil {
		return []model.Subscription{}, translateError(err)
	}
	return subs, nil
}

// 送信済みの購読者の last_sent を更新
func (r *SubscriptionGormRepository) MarkSent(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("id IN ?", ids).
		Update("last_sent", at).Error; err != nil {
		return translateError(err)
	}
	return nil
}

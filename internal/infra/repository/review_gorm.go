package repository

import (
	"context"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"gorm.io/gorm"
)

type ReviewGormRepository struct {
	db *gorm.DB
}

// DI
func NewReviewGormRepository(db *gorm.DB) *ReviewGormRepository {
	return &ReviewGormRepository{db: db}
}

func (r *ReviewGormRepository) withUsername(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&model.Review{}).
		Select("reviews.*, users.username AS username").
		Joins("JOIN users ON users.id = reviews.user_id")
}

// 新しい順にページング
func (r *ReviewGormRepository) ListByBook(ctx context.Context, bookID int64, page int, limit int) ([]model.Review, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&model.Review{}).
		Where("book_id = ?", bookID).
		Count(&total).Error; err != nil {
		return []model.Review{}, 0, translateError(err)
	}

	var reviews []model.Review
	err := r.withUsername(ctx).
		Where("reviews.book_id = ?", bookID).
		Order("reviews.created_at desc").
		Order("reviews.id desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&reviews).Error
	if err != nil {
		return []model.Review{}, 0, translateError(err)
	}
	return reviews, total, nil
}

func (r *ReviewGormRepository) FindByID(ctx context.Context, id int64) (model.Review, error) {
	var rv model.Review
	if err := r.withUsername(ctx).Where("reviews.id = ?", id).First(&rv).Error; err != nil {
		return model.Review{}, translateError(err)
	}
	return rv, nil
}

func (r *ReviewGormRepository) Create(ctx context.Context, rv model.Review) (model.Review, error) {
	if err := r.db.WithContext(ctx).Create(&rv).Error; err != nil {
		return model.Review{}, translateError(err)
	}
	return rv, nil
}

// 評価と本文だけ
func (r *ReviewGormRepository) Update(ctx context.Context, rv model.Review) error {
	res := r.db.WithContext(ctx).Model(&model.Review{}).Where("id = ?", rv.ID).Updates(map[string]any{
		"rating": rv.Rating,
		"text":   rv.Text,
	})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *ReviewGormRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.Review{}, id)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 平均評価と件数。レビューが無ければ0
func (r *ReviewGormRepository) Summary(ctx context.Context, bookID int64) (model.RatingSummary, error) {
	var row struct {
		AverageScore float64
		ReviewsCount int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average_score, COUNT(*) AS reviews_count").
		Where("book_id = ?", bookID).
		Scan(&row).Error
	if err != nil {
		return model.RatingSummary{}, translateError(err)
	}
	return model.RatingSummary{
		BookID:       bookID,
		AverageScore: row.AverageScore,
		ReviewsCount: row.ReviewsCount,
	}, nil
}

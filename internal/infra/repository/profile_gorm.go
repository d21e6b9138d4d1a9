package repository

import (
	"context"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"gorm.io/gorm"
)

type ProfileGormRepository struct {
	db *gorm.DB
}

// DI
func NewProfileGormRepository(db *gorm.DB) *ProfileGormRepository {
	return &ProfileGormRepository{db: db}
}

// 登録時に1件作る。同じユーザーに2件目は ErrConflict
func (r *ProfileGormRepository) Create(ctx context.Context, p model.UserProfile) (model.UserProfile, error) {
	if err := r.db.WithContext(ctx).Omit("FavoriteBooks").Create(&p).Error; err != nil {
		return model.UserProfile{}, translateError(err)
	}
	return p, nil
}

func (r *ProfileGormRepository) FindByUserID(ctx context.Context, userID int64) (model.UserProfile, error) {
	var p model.UserProfile
	err := r.db.WithContext(ctx).
		Preload("FavoriteBooks", func(db *gorm.DB) *gorm.DB {
			return db.Order("books.title asc")
		}).
		Where("user_id = ?", userID).
		First(&p).Error
	if err != nil {
		return model.UserProfile{}, translateError(err)
	}
	return p, nil
}

// 編集できる項目だけ更新
func (r *ProfileGormRepository) Update(ctx context.Context, p model.UserProfile) error {
	res := r.db.WithContext(ctx).Model(&model.UserProfile{}).Where("user_id = ?", p.UserID).Updates(map[string]any{
		"first_name":   p.FirstName,
		"last_name":    p.LastName,
		"street":       p.Street,
		"city":         p.City,
		"postal_code":  p.PostalCode,
		"country":      p.Country,
		"birth_date":   p.BirthDate,
		"bio":          p.Bio,
		"phone_number": p.PhoneNumber,
	})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *ProfileGormRepository) UpdatePicture(ctx context.Context, userID int64, url string) error {
	res := r.db.WithContext(ctx).
		Model(&model.UserProfile{}).
		Where("user_id = ?", userID).
		Update("profile_picture_url", url)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *ProfileGormRepository) HasFavorite(ctx context.Context, profileID int64, bookID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("profile_favorite_books").
		Where("user_profile_id = ? AND book_id = ?", profileID, bookID).
		Count(&count).Error
	if err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

func (r *ProfileGormRepository) AddFavorite(ctx context.Context, profileID int64, bookID int64) error {
	p := model.UserProfile{ID: profileID}
	b := model.Book{ID: bookID}
	if err := r.db.WithContext(ctx).Model(&p).Omit("FavoriteBooks.*").Association("FavoriteBooks").Append(&b); err != nil {
		return translateError(err)
	}
	return nil
}

func (r *ProfileGormRepository) RemoveFavorite(ctx context.Context, profileID int64, bookID int64) error {
	p := model.UserProfile{ID: profileID}
	b := model.Book{ID: bookID}
	if err := r.db.WithContext(ctx).Model(&p).Association("FavoriteBooks").Delete(&b); err != nil {
		return translateError(err)
	}
	return nil
}

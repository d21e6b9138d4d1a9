package repository

import (
	"context"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

// DI
func NewUserGormRepository(db *gorm.DB) repo.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return translateError(r.db.WithContext(ctx).Create(user).Error)
}

func (r *userRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return r.take(ctx, &model.User{ID: id})
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.take(ctx, &model.User{Email: email})
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.take(ctx, &model.User{Username: username})
}

// condのゼロ値でないフィールドで1件引く。全部ゼロなら条件なしになるので弾く
func (r *userRepository) take(ctx context.Context, cond *model.User) (*model.User, error) {
	if cond.ID <= 0 && cond.Email == "" && cond.Username == "" {
		return nil, repo.ErrNotFound
	}
	var u model.User
	if err := r.db.WithContext(ctx).Where(cond).Take(&u).Error; err != nil {
		return nil, translateError(err)
	}
	return &u, nil
}

func (r *userRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.updateColumn(ctx, id, "last_login_at", at)
}

func (r *userRepository) IncrementTokenVersion(ctx context.Context, id int64) error {
	return r.updateColumn(ctx, id, "token_version", gorm.Expr("token_version + 1"))
}

func (r *userRepository) updateColumn(ctx context.Context, id int64, col string, v any) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).UpdateColumn(col, v)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

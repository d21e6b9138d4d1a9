package repository

import (
	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ACTIVEカートの部分ユニークインデックスと同じ述語
const activeCartPredicate = "is_active = true"

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

func ownerColumn(owner model.CartOwner) string {
	if owner.IsUser() {
		return "user_id"
	}
	return "session_key"
}

func ownerValue(owner model.CartOwner) any {
	if owner.IsUser() {
		return owner.UserID
	}
	return owner.SessionKey
}

func (r *CartGormRepository) FindByID(ctx context.Context, cartID int64) (model.Cart, error) {
	var cart model.Cart
	if err := r.db.WithContext(ctx).First(&cart, cartID).Error; err != nil {
		return model.Cart{}, translateError(err)
	}
	return cart, nil
}

// 持ち主のACTIVEカートを取得
func (r *CartGormRepository) FindActive(ctx context.Context, owner model.CartOwner) (model.Cart, error) {
	if !owner.IsValid() {
		return model.Cart{}, repo.ErrNotFound
	}

	var cart model.Cart
	err := r.db.WithContext(ctx).
		Where(ownerColumn(owner)+" = ? AND is_active = ?", ownerValue(owner), true).
		First(&cart).Error
	if err != nil {
		return model.Cart{}, translateError(err)
	}
	return cart, nil
}

// 持ち主のACTIVEカートを行ロックして取得
func (r *CartGormRepository) LockActive(ctx context.Context, owner model.CartOwner) (model.Cart, error) {
	if !owner.IsValid() {
		return model.Cart{}, repo.ErrNotFound
	}

	var cart model.Cart
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(ownerColumn(owner)+" = ? AND is_active = ?", ownerValue(owner), true).
		First(&cart).Error
	if err != nil {
		return model.Cart{}, translateError(err)
	}
	return cart, nil
}

// ACTIVEカートを取得し、無ければ作成してロックする。
// INSERT ... ON CONFLICT DO NOTHING のあとに SELECT ... FOR UPDATE。
func (r *CartGormRepository) GetOrCreateActive(ctx context.Context, owner model.CartOwner) (model.Cart, error) {
	if !owner.IsValid() {
		return model.Cart{}, errors.New("invalid cart owner")
	}

	newCart := model.NewCart(owner, time.Now())
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:     []clause.Column{{Name: ownerColumn(owner)}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: activeCartPredicate}}},
			DoNothing:   true,
		}).
		Create(&newCart).Error
	if err != nil {
		return model.Cart{}, translateError(err)
	}

	return r.LockActive(ctx, owner)
}

// carts.is_activeをfalseへ。戻すことはない
func (r *CartGormRepository) Deactivate(ctx context.Context, cartID int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ? AND is_active = ?", cartID, true).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": time.Now(),
		})

	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 再計算した合計を書く
func (r *CartGormRepository) UpdateTotals(ctx context.Context, cartID int64, totals repo.CartTotals) error {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]any{
			"total_price": totals.TotalPrice,
			"total_items": totals.TotalItems,
			"updated_at":  time.Now(),
		})

	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 放置された匿名カートを明細ごと削除
func (r *CartGormRepository) DeleteStaleGuestCarts(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&model.Cart{}).
			Select("id").
			Where("user_id IS NULL AND is_active = ? AND created_at < ?", true, before)

		if err := tx.Where("cart_id IN (?)", stale).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}

		res := tx.Where("user_id IS NULL AND is_active = ? AND created_at < ?", true, before).
			Delete(&model.Cart{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, translateError(err)
	}
	return deleted, nil
}

package repository

import (
	"context"

	repo "bookstore/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	carts     repo.CartRepository
	cartItems repo.CartItemRepository
	books     repo.BookRepository
	genres    repo.GenreRepository
	inventory repo.InventoryRepository
	auditLogs repo.AuditLogRepository
	users     repo.UserRepository
	profiles  repo.ProfileRepository
}

func (r *txReposGorm) Carts() repo.CartRepository          { return r.carts }
func (r *txReposGorm) CartItems() repo.CartItemRepository  { return r.cartItems }
func (r *txReposGorm) Books() repo.BookRepository          { return r.books }
func (r *txReposGorm) Genres() repo.GenreRepository        { return r.genres }
func (r *txReposGorm) Inventory() repo.InventoryRepository { return r.inventory }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository  { return r.auditLogs }
func (r *txReposGorm) Users() repo.UserRepository          { return r.users }
func (r *txReposGorm) Profiles() repo.ProfileRepository    { return r.profiles }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

// fnのエラーはそのまま返す。commit時の競合は ErrConflict に寄せる
func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	err := tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			carts:     NewCartGormRepository(tx),
			cartItems: NewCartItemGormRepository(tx),
			books:     NewBookGormRepository(tx),
			genres:    NewGenreGormRepository(tx),
			inventory: NewInventoryGormRepository(tx),
			auditLogs: NewAuditLogGormRepository(tx),
			users:     NewUserGormRepository(tx),
			profiles:  NewProfileGormRepository(tx),
		}
		return fn(r)
	})
	return translateError(err)
}

package usecase_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"bookstore/internal/domain/model"
	"bookstore/internal/infra/db"
	infraRepo "bookstore/internal/infra/repository"
	"bookstore/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// =====================
// SQLite（インメモリ）
// =====================

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := db.OpenSQLite("file::memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func newTx(gdb *gorm.DB) repository.TransactionManager {
	return infraRepo.NewTxManagerGorm(gdb)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedUser(t *testing.T, gdb *gorm.DB, username string) model.User {
	t.Helper()

	u := model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         model.RoleUser,
		IsActive:     true,
	}
	require.NoError(t, gdb.Create(&u).Error)
	return u
}

func seedBook(t *testing.T, gdb *gorm.DB, title string, price string, stock int64) model.Book {
	t.Helper()

	b := model.Book{
		Title:         title,
		Slug:          fmt.Sprintf("%s-%d", title, time.Now().UnixNano()),
		Author:        "author",
		Price:         dec(price),
		StockQuantity: stock,
		IsPublished:   true,
	}
	require.NoError(t, gdb.Create(&b).Error)
	return b
}

type seedLine struct {
	book  model.Book
	qty   int64
	price string
}

// 明細つきACTIVEカートを作る（合計も揃える）
func seedCart(t *testing.T, gdb *gorm.DB, owner model.CartOwner, lines ...seedLine) model.Cart {
	t.Helper()

	cart := model.NewCart(owner, time.Now())
	require.NoError(t, gdb.Create(&cart).Error)

	items := make([]model.CartItem, 0, len(lines))
	for _, l := range lines {
		it := model.CartItem{
			CartID:   cart.ID,
			BookID:   l.book.ID,
			Quantity: l.qty,
			Price:    dec(l.price),
		}
		require.NoError(t, gdb.Create(&it).Error)
		items = append(items, it)
	}

	total, count := model.CartTotals(items)
	require.NoError(t, gdb.Model(&model.Cart{}).Where("id = ?", cart.ID).
		Updates(map[string]any{"total_price": total, "total_items": count}).Error)
	cart.TotalPrice = total
	cart.TotalItems = count
	return cart
}

func loadCart(t *testing.T, gdb *gorm.DB, id int64) model.Cart {
	t.Helper()

	var c model.Cart
	require.NoError(t, gdb.First(&c, id).Error)
	return c
}

// book_id → 明細
func loadItems(t *testing.T, gdb *gorm.DB, cartID int64) map[int64]model.CartItem {
	t.Helper()

	var items []model.CartItem
	require.NoError(t, gdb.Where("cart_id = ?", cartID).Find(&items).Error)

	out := make(map[int64]model.CartItem, len(items))
	for _, it := range items {
		out[it.BookID] = it
	}
	return out
}

func activeCart(t *testing.T, gdb *gorm.DB, owner model.CartOwner) (model.Cart, bool) {
	t.Helper()

	c, err := infraRepo.NewCartGormRepository(gdb).FindActive(context.Background(), owner)
	if err != nil {
		require.ErrorIs(t, err, repository.ErrNotFound)
		return model.Cart{}, false
	}
	return c, true
}

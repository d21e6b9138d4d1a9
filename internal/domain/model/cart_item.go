package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// カートの明細
// Priceは追加時点の実売価格。あとから書籍の価格が変わっても変えない。
type CartItem struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID    int64           `gorm:"not null;uniqueIndex:idx_cart_items_cart_book" json:"cart_id"`
	BookID    int64           `gorm:"not null;uniqueIndex:idx_cart_items_cart_book;index" json:"book_id"`
	Quantity  int64           `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	CreatedAt time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (it CartItem) LineTotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(it.Quantity))
}

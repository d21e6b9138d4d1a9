package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Genre struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"type:varchar(200);uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"-"`
}

type Book struct {
	ID              int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	Title           string              `gorm:"type:varchar(75);not null;index" json:"title"`
	Slug            string              `gorm:"type:varchar(255);not null;uniqueIndex" json:"slug"`
	Description     string              `gorm:"type:text" json:"description"`
	Author          string              `gorm:"type:varchar(100);not null;index" json:"author"`
	Price           decimal.Decimal     `gorm:"type:numeric(10,2);not null;index" json:"price"`
	DiscountedPrice decimal.NullDecimal `gorm:"type:numeric(10,2);index" json:"discounted_price"`
	ISBN            string              `gorm:"type:varchar(13)" json:"isbn,omitempty"`
	Pages           *int                `json:"pages,omitempty"`
	PublicationYear *int                `json:"publication_year,omitempty"`
	StockQuantity   int64               `gorm:"not null" json:"stock_quantity"`
	IsPublished     bool                `gorm:"not null;index" json:"is_published"`
	Genres          []Genre             `gorm:"many2many:book_genres" json:"genres"`
	CreatedAt       time.Time           `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt      `gorm:"index" json:"-"`
}

// 割引価格があればそれ、無ければ定価
func (b Book) EffectivePrice() decimal.Decimal {
	if b.DiscountedPrice.Valid {
		return b.DiscountedPrice.Decimal
	}
	return b.Price
}

// 割引率（%）。小数1桁で丸める
func (b Book) DiscountPercentage() decimal.Decimal {
	if !b.DiscountedPrice.Valid || !b.Price.IsPositive() {
		return decimal.Zero
	}
	off := b.Price.Sub(b.DiscountedPrice.Decimal)
	return off.Div(b.Price).Mul(decimal.NewFromInt(100)).Round(1)
}

func (b Book) InStock() bool {
	return b.StockQuantity > 0
}

// 平均評価とレビュー件数
type RatingSummary struct {
	BookID       int64   `json:"book_id"`
	AverageScore float64 `json:"average_rating"`
	ReviewsCount int64   `json:"reviews_count"`
}

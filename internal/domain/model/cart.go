package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// カートの持ち主。UserIDかSessionKeyのどちらか一方だけ。
type CartOwner struct {
	UserID     int64
	SessionKey string
}

func UserOwner(userID int64) CartOwner {
	return CartOwner{UserID: userID}
}

func GuestOwner(sessionKey string) CartOwner {
	return CartOwner{SessionKey: sessionKey}
}

func (o CartOwner) IsUser() bool {
	return o.UserID > 0
}

func (o CartOwner) IsValid() bool {
	return o.UserID > 0 || o.SessionKey != ""
}

// ACTIVEはuser_id / session_keyごとに1つ（部分ユニークインデックス）。
// total_price / total_items は明細から再計算した値だけを書く。
type Cart struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     *int64          `gorm:"index" json:"user_id,omitempty"`
	SessionKey *string         `gorm:"type:varchar(40);index" json:"-"`
	IsActive   bool            `gorm:"not null;index" json:"is_active"`
	TotalPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	TotalItems int64           `gorm:"not null" json:"total_items"`
	Items      []CartItem      `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt  time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 新しいACTIVEカート（未保存）
func NewCart(owner CartOwner, now time.Time) Cart {
	c := Cart{
		IsActive:   true,
		TotalPrice: decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if owner.IsUser() {
		id := owner.UserID
		c.UserID = &id
	} else {
		key := owner.SessionKey
		c.SessionKey = &key
	}
	return c
}

func (c Cart) IsOwnedBy(owner CartOwner) bool {
	if owner.IsUser() {
		return c.UserID != nil && *c.UserID == owner.UserID
	}
	return c.SessionKey != nil && *c.SessionKey == owner.SessionKey
}

// 明細から合計金額と合計数量を出す
func CartTotals(items []CartItem) (decimal.Decimal, int64) {
	total := decimal.Zero
	var count int64
	for _, it := range items {
		total = total.Add(it.LineTotal())
		count += it.Quantity
	}
	return total, count
}

package model

import "time"

// 管理者による在庫の付け替え1回分
type InventoryAdjustment struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	BookID      int64     `gorm:"not null;index:idx_inventory_adjustments_book_time,priority:1" json:"book_id"`
	ActorUserID int64     `gorm:"not null;index" json:"actor_user_id"`
	StockBefore int64     `gorm:"not null" json:"stock_before"`
	StockAfter  int64     `gorm:"not null" json:"stock_after"`
	Reason      string    `gorm:"type:varchar(255);not null" json:"reason"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime;index:idx_inventory_adjustments_book_time,priority:2" json:"created_at"`
}

// 正なら入庫、負なら出庫
func (a InventoryAdjustment) Delta() int64 {
	return a.StockAfter - a.StockBefore
}

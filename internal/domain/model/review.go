package model

import "time"

// 1ユーザーにつき1書籍1件
type Review struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	BookID    int64     `gorm:"not null;uniqueIndex:idx_reviews_book_user;index:idx_reviews_book_created,priority:1" json:"book_id"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_reviews_book_user;index" json:"user_id"`
	Username  string    `gorm:"->;-:migration" json:"username,omitempty"`
	Rating    int       `gorm:"not null" json:"rating"`
	Text      string    `gorm:"type:text" json:"text"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index:idx_reviews_book_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

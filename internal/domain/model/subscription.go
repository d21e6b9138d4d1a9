package model

import "time"

// メール購読（新刊通知）
type Subscription struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email          string     `gorm:"type:varchar(254);uniqueIndex;not null" json:"email"`
	IsActive       bool       `gorm:"not null;index" json:"is_active"`
	LastSent       *time.Time `json:"last_sent,omitempty"`
	DateSubscribed time.Time  `gorm:"not null;autoCreateTime" json:"date_subscribed"`
}

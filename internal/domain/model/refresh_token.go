package model

import "time"

// ログインセッションごとのrefresh token。平文は保存しない
type RefreshToken struct {
	ID         string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     int64      `gorm:"not null;index:idx_refresh_tokens_user_live,priority:1" json:"user_id"`
	TokenHash  string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"-"`
	UserAgent  string     `gorm:"type:varchar(255);not null;default:''" json:"user_agent"`
	ExpiresAt  time.Time  `gorm:"not null;index" json:"expires_at"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	RevokedAt  *time.Time `gorm:"index:idx_refresh_tokens_user_live,priority:2" json:"revoked_at,omitempty"`
	ReplacedBy *string    `gorm:"type:varchar(36)" json:"replaced_by,omitempty"` // ローテーション後の後継ID
	CreatedAt  time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
}

// 期限内で、未使用かつ未失効
func (t RefreshToken) Live(now time.Time) bool {
	return t.UsedAt == nil && t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

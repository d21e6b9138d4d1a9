package model

import (
	"encoding/json"
	"time"
)

type AuditAction string

const (
	AuditActionCreateBook  AuditAction = "CREATE_BOOK"
	AuditActionUpdateBook  AuditAction = "UPDATE_BOOK"
	AuditActionDeleteBook  AuditAction = "DELETE_BOOK"
	AuditActionUpdateStock AuditAction = "UPDATE_STOCK"
	AuditActionCreateGenre AuditAction = "CREATE_GENRE"
	AuditActionForceLogout AuditAction = "FORCE_LOGOUT"
)

type AuditResourceType string

const (
	AuditResourceBook  AuditResourceType = "book"
	AuditResourceGenre AuditResourceType = "genre"
	AuditResourceUser  AuditResourceType = "user"
)

// 管理者操作の記録。before/afterは対象のJSONスナップショット
type AuditLog struct {
	ID           int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorUserID  int64             `gorm:"not null;index" json:"actor_user_id"`
	Action       AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index:idx_audit_logs_resource,priority:1" json:"resource_type"`
	ResourceID   int64             `gorm:"not null;index:idx_audit_logs_resource,priority:2" json:"resource_id"`
	BeforeJSON   string            `gorm:"type:text" json:"before,omitempty"`
	AfterJSON    string            `gorm:"type:text" json:"after,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;index" json:"created_at"`
}

// before/afterはnilなら空のまま
func NewAuditLog(actor int64, action AuditAction, rt AuditResourceType, rid int64, before, after any) AuditLog {
	return AuditLog{
		ActorUserID:  actor,
		Action:       action,
		ResourceType: rt,
		ResourceID:   rid,
		BeforeJSON:   snapshot(before),
		AfterJSON:    snapshot(after),
		CreatedAt:    time.Now(),
	}
}

func snapshot(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

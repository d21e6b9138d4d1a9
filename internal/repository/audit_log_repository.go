package repository

import (
	"context"
	"time"

	"bookstore/internal/domain/model"
)

// 未指定(nil/ゼロ値)の条件は絞り込まない
type AuditLogQuery struct {
	ActorUserID  *int64
	Action       *model.AuditAction
	ResourceType *model.AuditResourceType
	ResourceID   *int64
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

type AuditLogPage struct {
	Items  []model.AuditLog `json:"items"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

type AuditLogRepository interface {
	Record(ctx context.Context, entries ...model.AuditLog) error
	// 新しい順。Totalはlimit/offset適用前の件数
	List(ctx context.Context, q AuditLogQuery) (AuditLogPage, error)
}

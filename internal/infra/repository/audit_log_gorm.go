package repository

import (
	"context"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"gorm.io/gorm"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

type auditLogRepository struct {
	db *gorm.DB
}

// DI
func NewAuditLogGormRepository(db *gorm.DB) repo.AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Record(ctx context.Context, entries ...model.AuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	return translateError(r.db.WithContext(ctx).Create(&entries).Error)
}

func (r *auditLogRepository) List(ctx context.Context, q repo.AuditLogQuery) (repo.AuditLogPage, error) {
	page := repo.AuditLogPage{Limit: q.Limit, Offset: max(q.Offset, 0)}
	if page.Limit <= 0 || page.Limit > maxAuditLimit {
		page.Limit = defaultAuditLimit
	}

	filtered := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&model.AuditLog{}).Scopes(auditFilters(q)...)
	}
	if err := filtered().Count(&page.Total).Error; err != nil {
		return repo.AuditLogPage{}, translateError(err)
	}

	page.Items = []model.AuditLog{}
	if err := filtered().Order("id DESC").Limit(page.Limit).Offset(page.Offset).Find(&page.Items).Error; err != nil {
		return repo.AuditLogPage{}, translateError(err)
	}
	return page, nil
}

func auditFilters(q repo.AuditLogQuery) []func(*gorm.DB) *gorm.DB {
	var scopes []func(*gorm.DB) *gorm.DB
	eq := func(col string, v any) {
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB { return db.Where(col+" = ?", v) })
	}

	if q.ActorUserID != nil {
		eq("actor_user_id", *q.ActorUserID)
	}
	if q.Action != nil {
		eq("action", *q.Action)
	}
	if q.ResourceType != nil {
		eq("resource_type", *q.ResourceType)
	}
	if q.ResourceID != nil {
		eq("resource_id", *q.ResourceID)
	}
	if q.From != nil {
		from := *q.From
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB { return db.Where("created_at >= ?", from) })
	}
	if q.To != nil {
		to := *q.To
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB { return db.Where("created_at <= ?", to) })
	}
	return scopes
}

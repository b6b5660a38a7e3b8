package repository

import (
	"context"

	"thekua/internal/domain/model"
	repo "thekua/internal/repository"

	"gorm.io/gorm"
)

type auditLogGormRepository struct {
	db *gorm.DB
}

func NewAuditLogGormRepository(db *gorm.DB) repo.AuditLogRepository {
	return &auditLogGormRepository{db: db}
}

func (r *auditLogGormRepository) Create(ctx context.Context, log model.AuditLog) error {
	return r.db.WithContext(ctx).Create(&log).Error
}

func (r *auditLogGormRepository) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, int64, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}

	conds := map[string]interface{}{}
	if f.ActorUserID > 0 {
		conds["actor_user_id"] = f.ActorUserID
	}
	if f.Action != "" {
		conds["action"] = f.Action
	}
	if f.ResourceType != "" {
		conds["resource_type"] = f.ResourceType
	}
	if f.ResourceID != "" {
		conds["resource_id"] = f.ResourceID
	}

	q := r.db.WithContext(ctx).Model(&model.AuditLog{})
	if len(conds) > 0 {
		q = q.Where(conds)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	logs := []model.AuditLog{}
	if err := q.Order("id desc").Limit(f.Limit).Offset(pageOffset(f.Page, f.Limit)).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

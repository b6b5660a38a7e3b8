package repository

import (
	"context"
	"time"

	"thekua/internal/domain/model"
)

// 監査ログの絞り込み。空のフィールドは条件にしない
type AuditLogFilter struct {
	ActorUserID  int64
	Action       model.AuditAction
	ResourceType model.AuditResourceType
	ResourceID   string
	From         *time.Time
	To           *time.Time
	Page         int
	Limit        int
}

type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error
	//新しい順。totalは絞り込み後の件数
	List(ctx context.Context, filter AuditLogFilter) ([]model.AuditLog, int64, error)
}

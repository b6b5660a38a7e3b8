package usecase

import (
	"context"
	"net/http"

	"thekua/internal/domain/model"
	repo "thekua/internal/repository"
)

// 管理者操作の履歴を見る
type AdminAuditUsecase struct {
	tx repo.TransactionManager
}

func NewAdminAuditUsecase(tx repo.TransactionManager) *AdminAuditUsecase {
	return &AdminAuditUsecase{tx: tx}
}

type AuditLogListOutput struct {
	Items []model.AuditLog `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

func (u *AdminAuditUsecase) List(ctx context.Context, f repo.AuditLogFilter) (AuditLogListOutput, error) {
	if f.Page < 1 {
		return AuditLogListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 200 {
		return AuditLogListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if f.Action != "" && !isAuditAction(f.Action) {
		return AuditLogListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid action")
	}
	if f.ResourceType != "" && f.ResourceType != model.AuditResourceOrder && f.ResourceType != model.AuditResourceProduct {
		return AuditLogListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid resourceType")
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return AuditLogListOutput{}, NewHTTPError(http.StatusBadRequest, "from must be before to")
	}

	var out AuditLogListOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		logs, total, err := r.AuditLogs().List(ctx, f)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out = AuditLogListOutput{Items: logs, Total: total, Page: f.Page, Limit: f.Limit}
		return nil
	})
	if err != nil {
		return AuditLogListOutput{}, err
	}
	return out, nil
}

func isAuditAction(a model.AuditAction) bool {
	switch a {
	case model.AuditActionUpdateStock, model.AuditActionUpdateOrderStatus,
		model.AuditActionDeleteOrder, model.AuditActionRequestRefund:
		return true
	}
	return false
}

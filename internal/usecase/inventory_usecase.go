package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"thekua/internal/domain/model"
	repo "thekua/internal/repository"
)

type InventoryUsecase struct {
	tx    repo.TransactionManager
	clock Clock
}

func NewInventoryUsecase(tx repo.TransactionManager, clock Clock) *InventoryUsecase {
	return &InventoryUsecase{tx: tx, clock: clock}
}

type SetStockInput struct {
	Stock  int64  `json:"stock"`
	Reason string `json:"reason"`
}

// 管理者による在庫の上書き。履歴と監査ログも同じトランザクションで。
func (u *InventoryUsecase) SetStock(ctx context.Context, adminUserID int64, productID string, in SetStockInput) error {
	if adminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(productID) == "" {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if in.Stock < 0 {
		return NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return NewHTTPError(http.StatusBadRequest, "reason required")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//変更前の在庫（before）
		p, err := r.Products().FindByID(ctx, productID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		beforeJSON := fmt.Sprintf(`{"stock":%d}`, p.Stock)
		afterJSON := fmt.Sprintf(`{"stock":%d}`, in.Stock)

		//在庫の現在値を更新
		if err := r.Inventory().SetStock(ctx, productID, in.Stock); err != nil {
			if err == repo.ErrNotFound {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//履歴を作成（差分）
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   productID,
			AdminUserID: adminUserID,
			Delta:       in.Stock - p.Stock,
			Reason:      reason,
			CreatedAt:   u.clock.Now(),
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//監査ログ（在庫更新）
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   beforeJSON,
			AfterJSON:    afterJSON,
			CreatedAt:    u.clock.Now(),
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
}

type StockHistoryOutput struct {
	ProductID   string                      `json:"productId"`
	Stock       int64                       `json:"stock"`
	Adjustments []model.InventoryAdjustment `json:"adjustments"`
}

// 現在の在庫と直近の増減
func (u *InventoryUsecase) History(ctx context.Context, productID string, limit int) (StockHistoryOutput, error) {
	if strings.TrimSpace(productID) == "" {
		return StockHistoryOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if limit < 1 || limit > 200 {
		return StockHistoryOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	var out StockHistoryOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		adjs, err := r.Inventory().ListAdjustments(ctx, productID, limit)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out = StockHistoryOutput{ProductID: p.ID, Stock: p.Stock, Adjustments: adjs}
		return nil
	})
	if err != nil {
		return StockHistoryOutput{}, err
	}
	return out, nil
}

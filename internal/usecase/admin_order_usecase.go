package usecase

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"thekua/internal/domain/model"
	repo "thekua/internal/repository"
)

type AdminOrderUsecase struct {
	tx        repo.TransactionManager
	publisher EventPublisher
	clock     Clock
	log       *zap.Logger
}

func NewAdminOrderUsecase(tx repo.TransactionManager, publisher EventPublisher, clock Clock, log *zap.Logger) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, publisher: publisher, clock: clock, log: log}
}

type AdminUpdateOrderStatusInput struct {
	Status string `json:"status"`
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (OrderListOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if f.OrderStatus != "" && !isOrderStatus(f.OrderStatus) {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid orderStatus")
	}
	if f.PaymentStatus != "" && !isPaymentStatus(f.PaymentStatus) {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid paymentStatus")
	}

	out := OrderListOutput{Page: f.Page, Limit: f.Limit}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out.Total = total

		out.Items = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			out.Items = append(out.Items, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

func (u *AdminOrderUsecase) Get(ctx context.Context, orderID string) (OrderOutput, error) {
	if strings.TrimSpace(orderID) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, items, err := loadOrder(ctx, r, orderID)
		if err != nil {
			return err
		}
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// ステータス更新。支払い済みをキャンセルしたら在庫を戻す。
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID string, in AdminUpdateOrderStatusInput) error {
	if actorAdminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(orderID) == "" {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	newStatus := model.OrderStatus(strings.TrimSpace(in.Status))
	switch newStatus {
	case model.OrderStatusConfirmed, model.OrderStatusProcessing, model.OrderStatusShipped,
		model.OrderStatusDelivered, model.OrderStatusCancelled:
		// OK
	default:
		return NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var cancelled model.Order

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 注文取得
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// すでに同じなら何もしない（200）
		if o.OrderStatus == newStatus {
			return nil
		}
		// 終端ガード
		if o.OrderStatus == model.OrderStatusCancelled {
			return NewHTTPError(http.StatusBadRequest, "cannot change cancelled order")
		}
		if o.OrderStatus == model.OrderStatusDelivered {
			return NewHTTPError(http.StatusBadRequest, "cannot change delivered order")
		}
		// 出荷系は支払い済みだけ
		if newStatus != model.OrderStatusCancelled && o.PaymentStatus != model.PaymentStatusPaid {
			return NewHTTPError(http.StatusBadRequest, "order is not paid")
		}

		// 在庫を減らしたのはpaidのときだけ
		if newStatus == model.OrderStatusCancelled && o.PaymentStatus == model.PaymentStatusPaid {
			items, err := r.OrderItems().ListByOrderID(ctx, orderID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

			for _, it := range items {
				if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
					if err == repo.ErrNotFound {
						// 商品が消えていたら戻し先が無い
						u.log.Warn("restock skipped", zap.String("product_id", it.ProductID), zap.String("order_id", orderID))
						continue
					}
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
				if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
					ProductID:   it.ProductID,
					OrderID:     orderID,
					AdminUserID: actorAdminUserID,
					Delta:       it.Quantity,
					Reason:      "order cancelled",
					CreatedAt:   u.clock.Now(),
				}); err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
			}
		}

		// ステータス更新
		beforeStatus := string(o.OrderStatus)
		if err := r.Orders().UpdateOrderStatus(ctx, orderID, newStatus); err != nil {
			if err == repo.ErrNotFound {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// 監査ログ（UPDATE_ORDER_STATUS）
		beforeJSON := `{"orderStatus":"` + beforeStatus + `"}`
		afterJSON := `{"orderStatus":"` + string(newStatus) + `"}`
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   beforeJSON,
			AfterJSON:    afterJSON,
			CreatedAt:    u.clock.Now(),
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if newStatus == model.OrderStatusCancelled {
			o.OrderStatus = newStatus
			cancelled = o
		}
		return nil
	})
	if err != nil {
		return err
	}

	if cancelled.ID != "" && u.publisher != nil {
		if err := u.publisher.Publish(ctx, model.OrderEvent{
			Type:                  model.OrderEventCancelled,
			OrderID:               cancelled.ID,
			UserID:                cancelled.UserID,
			MerchantTransactionID: cancelled.MerchantTransactionID,
			OrderStatus:           cancelled.OrderStatus,
			PaymentStatus:         cancelled.PaymentStatus,
			TotalAmount:           cancelled.TotalAmount.StringFixed(2),
			OccurredAt:            u.clock.Now(),
		}); err != nil {
			u.log.Warn("publish order event failed", zap.String("order_id", cancelled.ID), zap.Error(err))
		}
	}
	return nil
}

// 注文と明細を削除。在庫は戻さない（先にキャンセルする）
func (u *AdminOrderUsecase) Delete(ctx context.Context, actorAdminUserID int64, orderID string) error {
	if actorAdminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(orderID) == "" {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.Orders().Delete(ctx, orderID); err != nil {
			if err == repo.ErrNotFound {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionDeleteOrder,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   `{"orderStatus":"` + string(o.OrderStatus) + `","paymentStatus":"` + string(o.PaymentStatus) + `"}`,
			AfterJSON:    `{}`,
			CreatedAt:    u.clock.Now(),
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
}

func isOrderStatus(s string) bool {
	switch model.OrderStatus(s) {
	case model.OrderStatusPending, model.OrderStatusConfirmed, model.OrderStatusProcessing,
		model.OrderStatusShipped, model.OrderStatusDelivered, model.OrderStatusCancelled:
		return true
	}
	return false
}

func isPaymentStatus(s string) bool {
	switch model.PaymentStatus(s) {
	case model.PaymentStatusPending, model.PaymentStatusPaid, model.PaymentStatusFailed:
		return true
	}
	return false
}

package usecase

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"thekua/internal/domain/model"
	"thekua/internal/infra/phonepe"
	repo "thekua/internal/repository"
)

type RefundInput struct {
	OrderID string `json:"orderId"`
	// nilなら残額すべて
	Amount *decimal.Decimal `json:"amount"`
}

type RefundOutput struct {
	MerchantRefundID string          `json:"merchantRefundId"`
	OrderID          string          `json:"orderId"`
	MerchantOrderID  string          `json:"merchantOrderId"`
	Amount           decimal.Decimal `json:"amount"`
	State            string          `json:"state"`
	GatewayRefundID  string          `json:"gatewayRefundId,omitempty"`
}

func toRefundOutput(rf model.Refund) RefundOutput {
	return RefundOutput{
		MerchantRefundID: rf.ID,
		OrderID:          rf.OrderID,
		MerchantOrderID:  rf.MerchantOrderID,
		Amount:           rf.Amount,
		State:            string(rf.State),
		GatewayRefundID:  rf.GatewayRefundID,
	}
}

// 失敗以外の返金額の合計
func refundedTotal(refunds []model.Refund) decimal.Decimal {
	sum := decimal.Zero
	for _, rf := range refunds {
		if rf.State == model.RefundStateFailed {
			continue
		}
		sum = sum.Add(rf.Amount)
	}
	return sum
}

// paidの注文だけ返金できる。合計は注文額を超えない。
// 残額の確認と返金行の作成は注文単位のロックと行ロックの下で行う。
func (u *PaymentUsecase) Refund(ctx context.Context, actorAdminUserID int64, in RefundInput) (RefundOutput, error) {
	if actorAdminUserID <= 0 {
		return RefundOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	orderID := strings.TrimSpace(in.OrderID)
	if orderID == "" {
		return RefundOutput{}, NewHTTPError(http.StatusBadRequest, "orderId is required")
	}

	now := u.clock.Now()
	var rf model.Refund

	err := u.withLock(ctx, "refund:"+orderID, func() error {
		return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
			if err == repo.ErrNotFound {
				return NewHTTPError(http.StatusNotFound, "order not found")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if o.PaymentStatus != model.PaymentStatusPaid {
				return NewHTTPError(http.StatusConflict, "order is not paid")
			}

			prior, err := r.Refunds().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			remaining := o.TotalAmount.Sub(refundedTotal(prior))

			amount := remaining
			if in.Amount != nil {
				amount = *in.Amount
			}
			if !amount.IsPositive() {
				return NewHTTPError(http.StatusBadRequest, "invalid amount")
			}
			if amount.GreaterThan(remaining) {
				return NewHTTPError(http.StatusBadRequest, "refund exceeds remaining amount")
			}

			rf = model.Refund{
				ID:              newMerchantID("RF", u.ids.NewID(), now),
				OrderID:         o.ID,
				MerchantOrderID: o.MerchantTransactionID,
				Amount:          amount,
				AmountPaise:     phonepe.AmountToPaise(amount),
				State:           model.RefundStatePending,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := r.Refunds().Create(ctx, rf); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

			afterJSON, _ := json.Marshal(map[string]string{
				"merchantRefundId": rf.ID,
				"amount":           amount.StringFixed(2),
			})
			if err := r.AuditLogs().Create(ctx, model.AuditLog{
				ActorUserID:  actorAdminUserID,
				Action:       model.AuditActionRequestRefund,
				ResourceType: model.AuditResourceOrder,
				ResourceID:   o.ID,
				BeforeJSON:   `{"paymentStatus":"` + string(o.PaymentStatus) + `"}`,
				AfterJSON:    string(afterJSON),
				CreatedAt:    now,
			}); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			return nil
		})
	})
	if err != nil {
		return RefundOutput{}, err
	}

	resp, err := u.gateway.Refund(ctx, phonepe.RefundRequest{
		MerchantRefundID:        rf.ID,
		OriginalMerchantOrderID: rf.MerchantOrderID,
		Amount:                  rf.AmountPaise,
	})
	if err != nil {
		u.log.Error("refund request failed", zap.String("merchant_refund_id", rf.ID), zap.Error(err))
		u.updateRefundState(context.WithoutCancel(ctx), rf.ID, model.RefundStateFailed, "")
		return RefundOutput{}, gatewayError(err, "failed to request refund")
	}

	rf.State = model.RefundState(resp.State)
	rf.GatewayRefundID = resp.RefundID
	u.updateRefundState(ctx, rf.ID, rf.State, rf.GatewayRefundID)

	payload, _ := json.Marshal(resp)
	recordPaymentEvent(ctx, u.events, u.log, model.PaymentEvent{
		MerchantOrderID: rf.MerchantOrderID,
		Source:          model.PaymentEventSourceRefund,
		State:           string(resp.State),
		PayloadJSON:     string(payload),
		CreatedAt:       now,
	})

	return toRefundOutput(rf), nil
}

func (u *PaymentUsecase) RefundStatus(ctx context.Context, merchantRefundID string) (RefundOutput, error) {
	id := strings.TrimSpace(merchantRefundID)
	if !validMerchantID(id) {
		return RefundOutput{}, NewHTTPError(http.StatusBadRequest, "invalid merchantRefundId")
	}

	var rf model.Refund
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		found, err := r.Refunds().FindByID(ctx, id)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "refund not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		rf = found
		return nil
	})
	if err != nil {
		return RefundOutput{}, err
	}

	st, err := u.gateway.RefundStatus(ctx, id)
	if err != nil {
		u.log.Error("refund status failed", zap.String("merchant_refund_id", id), zap.Error(err))
		return RefundOutput{}, gatewayError(err, "failed to fetch refund status")
	}

	if st.State != "" && string(st.State) != string(rf.State) {
		rf.State = model.RefundState(st.State)
		u.updateRefundState(ctx, rf.ID, rf.State, "")
	}
	return toRefundOutput(rf), nil
}

func (u *PaymentUsecase) applyRefundWebhook(ctx context.Context, ev phonepe.WebhookEvent, body []byte) error {
	p := ev.Payload
	id := strings.TrimSpace(p.MerchantRefundID)
	if !validMerchantID(id) || p.State == "" {
		return NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	var merchantOrderID string
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		rf, err := r.Refunds().FindByID(ctx, id)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "refund not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		merchantOrderID = rf.MerchantOrderID
		if err := r.Refunds().UpdateState(ctx, id, model.RefundState(p.State), p.RefundID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return err
	}

	recordPaymentEvent(ctx, u.events, u.log, model.PaymentEvent{
		MerchantOrderID: merchantOrderID,
		Source:          model.PaymentEventSourceWebhook,
		Event:           ev.Event,
		State:           string(p.State),
		PayloadJSON:     string(body),
		CreatedAt:       u.clock.Now(),
	})
	return nil
}

// 返金の状態更新。失敗はログだけ（照会でやり直せる）
func (u *PaymentUsecase) updateRefundState(ctx context.Context, id string, state model.RefundState, gatewayRefundID string) {
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Refunds().UpdateState(ctx, id, state, gatewayRefundID)
	})
	if err != nil {
		u.log.Error("update refund state failed", zap.String("merchant_refund_id", id), zap.Error(err))
	}
}

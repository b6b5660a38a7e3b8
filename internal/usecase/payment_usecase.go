package usecase

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"thekua/internal/domain/model"
	"thekua/internal/infra/phonepe"
	repo "thekua/internal/repository"
)

// 決済の照合（capture / ポーリング / webhook）と返金
type PaymentUsecase struct {
	tx          repo.TransactionManager
	events      repo.PaymentEventRepository
	gateway     PaymentGateway
	locker      Locker
	publisher   EventPublisher
	ids         IDGenerator
	clock       Clock
	redirectURL string
	log         *zap.Logger
}

func NewPaymentUsecase(
	tx repo.TransactionManager,
	events repo.PaymentEventRepository,
	gateway PaymentGateway,
	locker Locker,
	publisher EventPublisher,
	ids IDGenerator,
	clock Clock,
	redirectURL string,
	log *zap.Logger,
) *PaymentUsecase {
	return &PaymentUsecase{
		tx:          tx,
		events:      events,
		gateway:     gateway,
		locker:      locker,
		publisher:   publisher,
		ids:         ids,
		clock:       clock,
		redirectURL: redirectURL,
		log:         log,
	}
}

type CaptureInput struct {
	MerchantTransactionID string `json:"merchantTransactionId"`
	OrderID               string `json:"orderId"`
}

type CaptureOutput struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Order   OrderOutput `json:"order"`
}

type applyResult struct {
	order        model.Order
	items        []model.OrderItem
	transitioned bool
}

// ゲートウェイの状態を注文に反映する。
// COMPLETED: 在庫減算・カート削除・paid/confirmed を1トランザクションで。
// 取消済みの注文がCOMPLETEDになったら paid/cancelled のまま返金待ち。
// FAILED: failed/cancelled。PENDINGは状態の記録だけ。
// pending以外の注文には何もしない。
func (u *PaymentUsecase) apply(ctx context.Context, merchantID string, state phonepe.State, gatewayTxnID string) (applyResult, error) {
	var res applyResult

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByMerchantTransactionID(ctx, merchantID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		res.items = items

		if o.PaymentStatus != model.PaymentStatusPending {
			res.order = o
			return nil
		}

		switch {
		case state == phonepe.StateCompleted && o.OrderStatus == model.OrderStatusCancelled:
			// 取消後に支払いが届いた。注文は取消のまま、在庫とカートは触らない
			ok, err := r.Orders().TransitionPayment(ctx, o.ID, repo.PaymentTransition{
				PaymentStatus:        model.PaymentStatusPaid,
				OrderStatus:          model.OrderStatusCancelled,
				GatewayState:         string(state),
				GatewayTransactionID: gatewayTxnID,
			})
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !ok {
				latest, err := r.Orders().FindByID(ctx, o.ID)
				if err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
				res.order = latest
				return nil
			}
			u.log.Warn("payment captured for cancelled order, refund required",
				zap.String("order_id", o.ID),
				zap.String("merchant_transaction_id", merchantID),
			)
			o.PaymentStatus = model.PaymentStatusPaid
			res.transitioned = true

		case state == phonepe.StateCompleted:
			ok, err := r.Orders().TransitionPayment(ctx, o.ID, repo.PaymentTransition{
				PaymentStatus:        model.PaymentStatusPaid,
				OrderStatus:          model.OrderStatusConfirmed,
				GatewayState:         string(state),
				GatewayTransactionID: gatewayTxnID,
			})
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !ok {
				// 先に誰かが確定させた
				latest, err := r.Orders().FindByID(ctx, o.ID)
				if err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
				res.order = latest
				return nil
			}

			for _, it := range items {
				if _, err := r.Products().FindByID(ctx, it.ProductID); err != nil {
					if err == repo.ErrNotFound {
						return NewHTTPError(http.StatusNotFound, "product not found: "+it.ProductID)
					}
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
				ok, err := r.Inventory().DecreaseStockIfEnough(ctx, it.ProductID, it.Quantity)
				if err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
				if !ok {
					return NewHTTPError(http.StatusBadRequest, "insufficient stock: "+it.Title)
				}
				if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
					ProductID: it.ProductID,
					OrderID:   o.ID,
					Delta:     -it.Quantity,
					Reason:    "payment captured",
					CreatedAt: u.clock.Now(),
				}); err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
			}

			if err := r.Carts().DeleteByUserID(ctx, o.UserID); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

			o.PaymentStatus = model.PaymentStatusPaid
			o.OrderStatus = model.OrderStatusConfirmed
			res.transitioned = true

		case state == phonepe.StateFailed:
			ok, err := r.Orders().TransitionPayment(ctx, o.ID, repo.PaymentTransition{
				PaymentStatus:        model.PaymentStatusFailed,
				OrderStatus:          model.OrderStatusCancelled,
				GatewayState:         string(state),
				GatewayTransactionID: gatewayTxnID,
			})
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !ok {
				latest, err := r.Orders().FindByID(ctx, o.ID)
				if err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
				res.order = latest
				return nil
			}
			o.PaymentStatus = model.PaymentStatusFailed
			o.OrderStatus = model.OrderStatusCancelled
			res.transitioned = true

		default:
			if state != "" && o.GatewayState != string(state) {
				if err := r.Orders().UpdateGatewayState(ctx, o.ID, string(state)); err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
			}
		}

		if state != "" {
			o.GatewayState = string(state)
		}
		if res.transitioned && gatewayTxnID != "" {
			o.GatewayTransactionID = gatewayTxnID
		}
		res.order = o
		return nil
	})
	if err != nil {
		return applyResult{}, err
	}

	if res.transitioned {
		u.publish(ctx, res.order)
	}
	return res, nil
}

// コミット後に通知する。失敗してもログだけ。
func (u *PaymentUsecase) publish(ctx context.Context, o model.Order) {
	if u.publisher == nil {
		return
	}
	typ := model.OrderEventPaid
	switch {
	case o.PaymentStatus == model.PaymentStatusFailed:
		typ = model.OrderEventPaymentFailed
	case o.OrderStatus == model.OrderStatusCancelled:
		typ = model.OrderEventRefundRequired
	}
	ev := model.OrderEvent{
		Type:                  typ,
		OrderID:               o.ID,
		UserID:                o.UserID,
		MerchantTransactionID: o.MerchantTransactionID,
		OrderStatus:           o.OrderStatus,
		PaymentStatus:         o.PaymentStatus,
		TotalAmount:           o.TotalAmount.StringFixed(2),
		OccurredAt:            u.clock.Now(),
	}
	if err := u.publisher.Publish(ctx, ev); err != nil {
		u.log.Warn("publish order event failed",
			zap.String("order_id", o.ID),
			zap.String("type", string(typ)),
			zap.Error(err),
		)
	}
}

// 同じ注文の照合は直列
func (u *PaymentUsecase) withOrderLock(ctx context.Context, merchantID string, fn func() error) error {
	return u.withLock(ctx, "payment:"+merchantID, fn)
}

func (u *PaymentUsecase) withLock(ctx context.Context, key string, fn func() error) error {
	unlock, err := u.locker.Lock(ctx, key)
	if err != nil {
		u.log.Warn("acquire lock failed", zap.String("key", key), zap.Error(err))
		return NewHTTPError(http.StatusConflict, "payment is being processed")
	}
	defer unlock()
	return fn()
}

func (u *PaymentUsecase) findByMerchantID(ctx context.Context, merchantID string) (model.Order, error) {
	var o model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		found, err := r.Orders().FindByMerchantTransactionID(ctx, merchantID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		o = found
		return nil
	})
	return o, err
}

func (u *PaymentUsecase) findByID(ctx context.Context, orderID string) (model.Order, error) {
	var o model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		found, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		o = found
		return nil
	})
	return o, err
}

// ゲートウェイに状態を問い合わせて反映する
func (u *PaymentUsecase) reconcile(ctx context.Context, merchantID string, source model.PaymentEventSource) (applyResult, json.RawMessage, error) {
	st, raw, err := u.gateway.OrderStatus(ctx, merchantID)
	if err != nil {
		u.log.Error("order status failed", zap.String("merchant_transaction_id", merchantID), zap.Error(err))
		return applyResult{}, nil, gatewayError(err, "failed to fetch payment status")
	}

	recordPaymentEvent(ctx, u.events, u.log, model.PaymentEvent{
		MerchantOrderID: merchantID,
		Source:          source,
		State:           string(st.State),
		PayloadJSON:     string(raw),
		CreatedAt:       u.clock.Now(),
	})

	res, err := u.apply(ctx, merchantID, st.State, phonepe.TransactionIDOf(st.PaymentDetails))
	if err != nil {
		return applyResult{}, nil, err
	}
	return res, raw, nil
}

// 決済完了後にフロントから呼ばれる
func (u *PaymentUsecase) Capture(ctx context.Context, in CaptureInput) (CaptureOutput, error) {
	merchantID := strings.TrimSpace(in.MerchantTransactionID)
	if !validMerchantID(merchantID) {
		return CaptureOutput{}, NewHTTPError(http.StatusBadRequest, "invalid merchantTransactionId")
	}

	var res applyResult
	err := u.withOrderLock(ctx, merchantID, func() error {
		o, err := u.findByMerchantID(ctx, merchantID)
		if err != nil {
			return err
		}
		if in.OrderID != "" && in.OrderID != o.ID {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}

		// 確定済みならゲートウェイに聞かない
		if o.PaymentStatus != model.PaymentStatusPending {
			var items []model.OrderItem
			err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
				var err error
				items, err = r.OrderItems().ListByOrderID(ctx, o.ID)
				if err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
				return nil
			})
			if err != nil {
				return err
			}
			res = applyResult{order: o, items: items}
			return nil
		}

		res, _, err = u.reconcile(ctx, merchantID, model.PaymentEventSourceCapture)
		return err
	})
	if err != nil {
		return CaptureOutput{}, err
	}

	out := CaptureOutput{Order: toOrderOutput(res.order, res.items)}
	switch res.order.PaymentStatus {
	case model.PaymentStatusPaid:
		out.Success = true
		out.Message = "payment successful, order confirmed"
		if res.order.OrderStatus == model.OrderStatusCancelled {
			out.Message = "payment received for cancelled order, refund pending"
		}
	case model.PaymentStatusFailed:
		out.Message = "payment failed"
	default:
		out.Message = "payment pending"
	}
	return out, nil
}

// 生のステータス応答を返す。pendingなら反映もする。
func (u *PaymentUsecase) PaymentStatus(ctx context.Context, merchantTransactionID string) (json.RawMessage, error) {
	merchantID := strings.TrimSpace(merchantTransactionID)
	if !validMerchantID(merchantID) {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid merchantTransactionId")
	}

	var raw json.RawMessage
	err := u.withOrderLock(ctx, merchantID, func() error {
		if _, err := u.findByMerchantID(ctx, merchantID); err != nil {
			return err
		}
		var err error
		_, raw, err = u.reconcile(ctx, merchantID, model.PaymentEventSourcePoll)
		return err
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// サーバー間通知。署名ヘッダを検証してから状態を反映する。
func (u *PaymentUsecase) Webhook(ctx context.Context, authorization string, body []byte) error {
	if !u.gateway.VerifyWebhook(authorization) {
		u.log.Warn("webhook authorization rejected")
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	ev, err := phonepe.ParseWebhook(body)
	if err != nil {
		return NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if ev.IsRefund() {
		return u.applyRefundWebhook(ctx, ev, body)
	}

	p := ev.Payload
	merchantID := strings.TrimSpace(p.MerchantOrderID)
	if !validMerchantID(merchantID) || p.State == "" {
		return NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	return u.withOrderLock(ctx, merchantID, func() error {
		// 知らない注文の通知は記録しない
		if _, err := u.findByMerchantID(ctx, merchantID); err != nil {
			return err
		}
		recordPaymentEvent(ctx, u.events, u.log, model.PaymentEvent{
			MerchantOrderID: merchantID,
			Source:          model.PaymentEventSourceWebhook,
			Event:           ev.Event,
			State:           string(p.State),
			PayloadJSON:     string(body),
			CreatedAt:       u.clock.Now(),
		})
		_, err := u.apply(ctx, merchantID, p.State, phonepe.TransactionIDOf(p.PaymentDetails))
		return err
	})
}

// 決済リンクを再取得する。
// リンクがあれば先に照合し、まだpendingならそのリンクを返す。
// 無ければ採番し直して新しいセッションを作る。
// 同じ注文のInitiateは注文IDで直列にし、判断はロック内で読み直した状態で行う。
func (u *PaymentUsecase) Initiate(ctx context.Context, orderID string) (CreateOrderOutput, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return CreateOrderOutput{}, NewHTTPError(http.StatusBadRequest, "orderId is required")
	}

	var out CreateOrderOutput
	err := u.withLock(ctx, "initiate:"+orderID, func() error {
		o, err := u.findByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := settledError(o.PaymentStatus); err != nil {
			return err
		}

		if o.PaymentURL != "" {
			return u.withOrderLock(ctx, o.MerchantTransactionID, func() error {
				res, _, err := u.reconcile(ctx, o.MerchantTransactionID, model.PaymentEventSourcePoll)
				if err != nil {
					return err
				}
				if err := settledError(res.order.PaymentStatus); err != nil {
					return err
				}
				out = CreateOrderOutput{
					Success:               true,
					PaymentURL:            o.PaymentURL,
					OrderID:               o.ID,
					MerchantTransactionID: o.MerchantTransactionID,
				}
				return nil
			})
		}

		now := u.clock.Now()
		merchantID := newMerchantID("TK", u.ids.NewID(), now)
		err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			ok, err := r.Orders().RotateMerchantTransactionID(ctx, o.ID, o.MerchantTransactionID, merchantID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !ok {
				// 読んだ後に別プロセスが採番し直したか確定した
				return NewHTTPError(http.StatusConflict, "payment is being processed")
			}
			return nil
		})
		if err != nil {
			return err
		}

		resp, err := u.gateway.CreatePayment(ctx, phonepe.CreatePaymentRequest{
			MerchantOrderID: merchantID,
			AmountPaise:     phonepe.AmountToPaise(o.TotalAmount),
			RedirectURL:     buildRedirectURL(u.redirectURL, o.ID, merchantID),
			MetaInfo: map[string]string{
				"udf1": o.ID,
				"udf2": o.UserID,
			},
		})
		if err != nil {
			u.log.Error("create payment failed", zap.String("order_id", o.ID), zap.Error(err))
			return gatewayError(err, "failed to create payment session")
		}

		err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			if err := r.Orders().UpdatePaymentLink(ctx, o.ID, resp.RedirectURL, resp.OrderID, string(resp.State)); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			return nil
		})
		if err != nil {
			return err
		}

		payload, _ := json.Marshal(resp)
		recordPaymentEvent(ctx, u.events, u.log, model.PaymentEvent{
			MerchantOrderID: merchantID,
			Source:          model.PaymentEventSourceCreate,
			State:           string(resp.State),
			PayloadJSON:     string(payload),
			CreatedAt:       now,
		})

		out = CreateOrderOutput{
			Success:               true,
			PaymentURL:            resp.RedirectURL,
			OrderID:               o.ID,
			MerchantTransactionID: merchantID,
		}
		return nil
	})
	if err != nil {
		return CreateOrderOutput{}, err
	}
	return out, nil
}

func settledError(s model.PaymentStatus) error {
	switch s {
	case model.PaymentStatusPaid:
		return NewHTTPError(http.StatusConflict, "order already paid")
	case model.PaymentStatusFailed:
		return NewHTTPError(http.StatusConflict, "payment failed, place a new order")
	}
	return nil
}

package usecase

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"thekua/internal/domain/model"
	"thekua/internal/infra/phonepe"
	repo "thekua/internal/repository"
	"thekua/internal/validator"
)

type OrderUsecase struct {
	tx          repo.TransactionManager
	events      repo.PaymentEventRepository
	gateway     PaymentGateway
	ids         IDGenerator
	clock       Clock
	redirectURL string
	log         *zap.Logger
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	events repo.PaymentEventRepository,
	gateway PaymentGateway,
	ids IDGenerator,
	clock Clock,
	redirectURL string,
	log *zap.Logger,
) *OrderUsecase {
	return &OrderUsecase{
		tx:          tx,
		events:      events,
		gateway:     gateway,
		ids:         ids,
		clock:       clock,
		redirectURL: redirectURL,
		log:         log,
	}
}

// カートの1行（クライアント申告のスナップショット）
type CartItemInput struct {
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
}

type CreateOrderInput struct {
	UserID        string            `json:"userId"`
	CartID        string            `json:"cartId"`
	CartItems     []CartItemInput   `json:"cartItems"`
	AddressInfo   model.AddressInfo `json:"addressInfo"`
	PaymentMethod string            `json:"paymentMethod"`
	TotalAmount   decimal.Decimal   `json:"totalAmount"`
	CustomerName  string            `json:"customerName"`
	CustomerEmail string            `json:"customerEmail"`
}

type CreateOrderOutput struct {
	Success               bool   `json:"success"`
	PaymentURL            string `json:"paymentUrl"`
	OrderID               string `json:"orderId"`
	MerchantTransactionID string `json:"merchantTransactionId"`
}

type OrderItemOutput struct {
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
}

type OrderOutput struct {
	ID                    string            `json:"id"`
	UserID                string            `json:"userId"`
	CartID                string            `json:"cartId"`
	AddressInfo           model.AddressInfo `json:"addressInfo"`
	CustomerName          string            `json:"customerName"`
	CustomerEmail         string            `json:"customerEmail"`
	OrderStatus           string            `json:"orderStatus"`
	PaymentStatus         string            `json:"paymentStatus"`
	PaymentMethod         string            `json:"paymentMethod"`
	MerchantTransactionID string            `json:"merchantTransactionId"`
	GatewayTransactionID  string            `json:"gatewayTransactionId,omitempty"`
	PaymentURL            string            `json:"paymentUrl,omitempty"`
	TotalAmount           decimal.Decimal   `json:"totalAmount"`
	CreatedAt             time.Time         `json:"createdAt"`
	UpdatedAt             time.Time         `json:"updatedAt"`
	Items                 []OrderItemOutput `json:"items"`
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Title:     it.Title,
			Image:     it.Image,
			Price:     it.Price,
			Quantity:  it.Quantity,
		})
	}
	return OrderOutput{
		ID:                    o.ID,
		UserID:                o.UserID,
		CartID:                o.CartID,
		AddressInfo:           o.AddressInfo,
		CustomerName:          o.CustomerName,
		CustomerEmail:         o.CustomerEmail,
		OrderStatus:           string(o.OrderStatus),
		PaymentStatus:         string(o.PaymentStatus),
		PaymentMethod:         o.PaymentMethod,
		MerchantTransactionID: o.MerchantTransactionID,
		GatewayTransactionID:  o.GatewayTransactionID,
		PaymentURL:            o.PaymentURL,
		TotalAmount:           o.TotalAmount,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
		Items:                 outItems,
	}
}

// 書き込み前にすべて検証する
func validateCreateOrder(in CreateOrderInput) error {
	if strings.TrimSpace(in.UserID) == "" {
		return NewHTTPError(http.StatusBadRequest, "userId is required")
	}
	if len(in.CartItems) == 0 {
		return NewHTTPError(http.StatusBadRequest, "cart is empty")
	}
	for _, it := range in.CartItems {
		if strings.TrimSpace(it.ProductID) == "" {
			return NewHTTPError(http.StatusBadRequest, "invalid cart item")
		}
		if it.Quantity < 1 {
			return NewHTTPError(http.StatusBadRequest, "invalid quantity")
		}
		if it.Price.IsNegative() {
			return NewHTTPError(http.StatusBadRequest, "invalid price")
		}
	}
	a := in.AddressInfo
	if strings.TrimSpace(a.Address) == "" || strings.TrimSpace(a.City) == "" ||
		strings.TrimSpace(a.Pincode) == "" || strings.TrimSpace(a.Phone) == "" {
		return NewHTTPError(http.StatusBadRequest, "incomplete address")
	}
	if !validator.IsPincode(a.Pincode) {
		return NewHTTPError(http.StatusBadRequest, "invalid pincode")
	}
	if !validator.IsPhoneLike(a.Phone) {
		return NewHTTPError(http.StatusBadRequest, "invalid phone")
	}
	if in.CustomerEmail != "" && !validator.IsEmailLike(in.CustomerEmail) {
		return NewHTTPError(http.StatusBadRequest, "invalid customerEmail")
	}
	if in.PaymentMethod != "" && in.PaymentMethod != model.PaymentMethodPhonePe {
		return NewHTTPError(http.StatusBadRequest, "unsupported payment method")
	}
	if !in.TotalAmount.IsPositive() {
		return NewHTTPError(http.StatusBadRequest, "invalid totalAmount")
	}
	return nil
}

// 注文をpendingで保存して決済セッションを作る。在庫はまだ動かさない。
func (u *OrderUsecase) CreateOrder(ctx context.Context, in CreateOrderInput) (CreateOrderOutput, error) {
	if err := validateCreateOrder(in); err != nil {
		return CreateOrderOutput{}, err
	}

	sum := decimal.Zero
	for _, it := range in.CartItems {
		sum = sum.Add(it.Price.Mul(decimal.NewFromInt(it.Quantity)))
	}
	if !sum.Equal(in.TotalAmount) {
		// 申告額をそのまま請求する
		u.log.Warn("totalAmount differs from cart sum",
			zap.String("user_id", in.UserID),
			zap.String("total_amount", in.TotalAmount.String()),
			zap.String("cart_sum", sum.String()),
		)
	}

	now := u.clock.Now()
	orderID := u.ids.NewID()
	merchantID := newMerchantID("TK", u.ids.NewID(), now)

	items := make([]model.OrderItem, 0, len(in.CartItems))
	for _, it := range in.CartItems {
		items = append(items, model.OrderItem{
			ProductID: it.ProductID,
			Title:     it.Title,
			Image:     it.Image,
			Price:     it.Price,
			Quantity:  it.Quantity,
		})
	}

	order := model.Order{
		ID:                    orderID,
		UserID:                in.UserID,
		CartID:                in.CartID,
		AddressInfo:           in.AddressInfo,
		CustomerName:          in.CustomerName,
		CustomerEmail:         in.CustomerEmail,
		OrderStatus:           model.OrderStatusPending,
		PaymentStatus:         model.PaymentStatusPending,
		PaymentMethod:         model.PaymentMethodPhonePe,
		MerchantTransactionID: merchantID,
		TotalAmount:           in.TotalAmount,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Orders().Create(ctx, order); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return CreateOrderOutput{}, err
	}

	resp, err := u.gateway.CreatePayment(ctx, phonepe.CreatePaymentRequest{
		MerchantOrderID: merchantID,
		AmountPaise:     phonepe.AmountToPaise(in.TotalAmount),
		RedirectURL:     buildRedirectURL(u.redirectURL, orderID, merchantID),
		MetaInfo: map[string]string{
			"udf1": orderID,
			"udf2": in.UserID,
		},
	})
	if err != nil {
		u.log.Error("create payment failed",
			zap.String("order_id", orderID),
			zap.String("merchant_transaction_id", merchantID),
			zap.Error(err),
		)
		u.discardOrder(ctx, orderID)
		return CreateOrderOutput{}, gatewayError(err, "failed to create payment session")
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Orders().UpdatePaymentLink(ctx, orderID, resp.RedirectURL, resp.OrderID, string(resp.State))
	})
	if err != nil {
		// セッションは生きているのでinitiateから再開できる
		u.log.Error("save payment link failed", zap.String("order_id", orderID), zap.Error(err))
		return CreateOrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	payload, _ := json.Marshal(resp)
	recordPaymentEvent(ctx, u.events, u.log, model.PaymentEvent{
		MerchantOrderID: merchantID,
		Source:          model.PaymentEventSourceCreate,
		State:           string(resp.State),
		PayloadJSON:     string(payload),
		CreatedAt:       now,
	})

	return CreateOrderOutput{
		Success:               true,
		PaymentURL:            resp.RedirectURL,
		OrderID:               orderID,
		MerchantTransactionID: merchantID,
	}, nil
}

// ゲートウェイ失敗時の後始末。失敗してもログだけ。
func (u *OrderUsecase) discardOrder(ctx context.Context, orderID string) {
	ctx = context.WithoutCancel(ctx)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Orders().Delete(ctx, orderID)
	})
	if err != nil {
		u.log.Error("discard order failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (u *OrderUsecase) ListUserOrders(ctx context.Context, userID string, page int, limit int) (OrderListOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid userId")
	}
	if page < 1 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if limit < 1 || limit > 100 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	out := OrderListOutput{Page: page, Limit: limit}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListByUserID(ctx, userID, page, limit)
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

func (u *OrderUsecase) GetOrder(ctx context.Context, orderID string) (OrderOutput, error) {
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

func loadOrder(ctx context.Context, r repo.TxRepos, orderID string) (model.Order, []model.OrderItem, error) {
	o, err := r.Orders().FindByID(ctx, orderID)
	if err == repo.ErrNotFound {
		return model.Order{}, nil, NewHTTPError(http.StatusNotFound, "order not found")
	}
	if err != nil {
		return model.Order{}, nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return model.Order{}, nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return o, items, nil
}

// 決済イベントの記録は診断用。失敗しても処理は続ける。
func recordPaymentEvent(ctx context.Context, events repo.PaymentEventRepository, log *zap.Logger, ev model.PaymentEvent) {
	if events == nil {
		return
	}
	if err := events.Create(ctx, ev); err != nil {
		log.Warn("record payment event failed",
			zap.String("merchant_order_id", ev.MerchantOrderID),
			zap.String("source", string(ev.Source)),
			zap.Error(err),
		)
	}
}

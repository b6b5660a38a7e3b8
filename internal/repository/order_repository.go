package repository

import (
	"context"
	"time"

	"thekua/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page          int
	Limit         int
	OrderStatus   string
	PaymentStatus string
	UserID        string
	From          *time.Time
	To            *time.Time
}

// 決済状態の遷移。pending のときだけ適用する。
type PaymentTransition struct {
	PaymentStatus        model.PaymentStatus
	OrderStatus          model.OrderStatus
	GatewayState         string
	GatewayTransactionID string
}

type OrderRepository interface {
	Create(ctx context.Context, order model.Order) error
	FindByID(ctx context.Context, orderID string) (model.Order, error)
	//SELECT ... FOR UPDATE。トランザクション内で使う
	FindByIDForUpdate(ctx context.Context, orderID string) (model.Order, error)
	FindByMerchantTransactionID(ctx context.Context, merchantTransactionID string) (model.Order, error)
	ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error)
	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)

	//決済セッション作成後にURLとゲートウェイIDを保存
	UpdatePaymentLink(ctx context.Context, orderID string, paymentURL string, gatewayOrderID string, gatewayState string) error
	//payment_status = pending の行だけ更新する。更新したらtrue
	TransitionPayment(ctx context.Context, orderID string, t PaymentTransition) (bool, error)
	//ゲートウェイの状態だけ記録（pendingのまま）
	UpdateGatewayState(ctx context.Context, orderID string, state string) error
	UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error
	//決済セッションを作り直すときに採番し直す。
	//現在の番号が from のときだけ更新し、更新したらtrue
	RotateMerchantTransactionID(ctx context.Context, orderID string, from string, to string) (bool, error)
	Delete(ctx context.Context, orderID string) error
}

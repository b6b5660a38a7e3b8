package usecase

import (
	"context"
	"encoding/json"
	"time"

	"thekua/internal/domain/model"
	"thekua/internal/infra/phonepe"
)

// phonepe.Client が満たす
type PaymentGateway interface {
	CreatePayment(ctx context.Context, in phonepe.CreatePaymentRequest) (phonepe.CreatePaymentResponse, error)
	OrderStatus(ctx context.Context, merchantOrderID string) (phonepe.OrderStatusResponse, json.RawMessage, error)
	Refund(ctx context.Context, in phonepe.RefundRequest) (phonepe.RefundResponse, error)
	RefundStatus(ctx context.Context, merchantRefundID string) (phonepe.RefundStatusResponse, error)
	VerifyWebhook(authorization string) bool
}

// 同じ注文の照合を直列にする（lock.MemoryLocker / lock.RedisLocker）
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// mq.Publisher / mq.LogPublisher
type EventPublisher interface {
	Publish(ctx context.Context, ev model.OrderEvent) error
}

type IDGenerator interface {
	NewID() string
}

type Clock interface {
	Now() time.Time
}

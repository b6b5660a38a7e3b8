package repository

import (
	"context"

	"thekua/internal/domain/model"
)

type RefundRepository interface {
	Create(ctx context.Context, refund model.Refund) error
	FindByID(ctx context.Context, merchantRefundID string) (model.Refund, error)
	ListByOrderID(ctx context.Context, orderID string) ([]model.Refund, error)
	UpdateState(ctx context.Context, merchantRefundID string, state model.RefundState, gatewayRefundID string) error
}

package repository

import (
	"context"

	"thekua/internal/domain/model"
)

type PaymentEventRepository interface {
	Create(ctx context.Context, ev model.PaymentEvent) error
	ListByMerchantOrderID(ctx context.Context, merchantOrderID string) ([]model.PaymentEvent, error)
}

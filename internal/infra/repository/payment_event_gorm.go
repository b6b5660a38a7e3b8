package repository

import (
	"context"

	"thekua/internal/domain/model"
	repo "thekua/internal/repository"

	"gorm.io/gorm"
)

type paymentEventGormRepository struct {
	db *gorm.DB
}

func NewPaymentEventGormRepository(db *gorm.DB) repo.PaymentEventRepository {
	return &paymentEventGormRepository{db: db}
}

func (r *paymentEventGormRepository) Create(ctx context.Context, ev model.PaymentEvent) error {
	return r.db.WithContext(ctx).Create(&ev).Error
}

// 古い順
func (r *paymentEventGormRepository) ListByMerchantOrderID(ctx context.Context, merchantOrderID string) ([]model.PaymentEvent, error) {
	var evs []model.PaymentEvent
	if err := r.db.WithContext(ctx).
		Where("merchant_order_id = ?", merchantOrderID).
		Order("id asc").
		Find(&evs).Error; err != nil {
		return nil, err
	}
	return evs, nil
}

package repository

import (
	"context"
	"time"

	"thekua/internal/domain/model"

	"gorm.io/gorm"
)

type RefundGormRepository struct {
	db *gorm.DB
}

func NewRefundGormRepository(db *gorm.DB) *RefundGormRepository {
	return &RefundGormRepository{db: db}
}

func (r *RefundGormRepository) Create(ctx context.Context, refund model.Refund) error {
	return r.db.WithContext(ctx).Create(&refund).Error
}

func (r *RefundGormRepository) FindByID(ctx context.Context, merchantRefundID string) (model.Refund, error) {
	return findOne[model.Refund](ctx, r.db, "id = ?", merchantRefundID)
}

func (r *RefundGormRepository) ListByOrderID(ctx context.Context, orderID string) ([]model.Refund, error) {
	var rfs []model.Refund
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at asc").Find(&rfs).Error; err != nil {
		return nil, err
	}
	return rfs, nil
}

func (r *RefundGormRepository) UpdateState(ctx context.Context, merchantRefundID string, state model.RefundState, gatewayRefundID string) error {
	cols := map[string]interface{}{
		"state":      state,
		"updated_at": time.Now(),
	}
	//空なら既存の値を残す
	if gatewayRefundID != "" {
		cols["gateway_refund_id"] = gatewayRefundID
	}

	return mustAffect(r.db.WithContext(ctx).Model(&model.Refund{}).Where("id = ?", merchantRefundID).Updates(cols))
}

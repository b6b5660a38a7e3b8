package repository

import (
	"context"

	"thekua/internal/domain/model"

	"gorm.io/gorm"
)

// 1回のINSERTに入れる明細数
const orderItemBatchSize = 100

type OrderItemGormRepository struct {
	db *gorm.DB
}

func NewOrderItemGormRepository(db *gorm.DB) *OrderItemGormRepository {
	return &OrderItemGormRepository{db: db}
}

// 呼び出し元のスライスは書き換えない
func (r *OrderItemGormRepository) CreateBulk(ctx context.Context, orderID string, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]model.OrderItem, len(items))
	for i, it := range items {
		it.ID = 0
		it.OrderID = orderID
		rows[i] = it
	}
	return r.db.WithContext(ctx).CreateInBatches(&rows, orderItemBatchSize).Error
}

// カートに入れた順
func (r *OrderItemGormRepository) ListByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	items := []model.OrderItem{}
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&items).Error; err != nil {
		return []model.OrderItem{}, err
	}
	return items, nil
}

package repository

import (
	"context"

	"thekua/internal/domain/model"

	"gorm.io/gorm"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

func (r *InventoryGormRepository) products(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Product{})
}

func (r *InventoryGormRepository) SetStock(ctx context.Context, productID string, newStock int64) error {
	return mustAffect(r.products(ctx).Where("id = ?", productID).Update("stock", newStock))
}

// 条件付きUPDATE 1本で減らすので、同時に来ても在庫はマイナスにならない
func (r *InventoryGormRepository) DecreaseStockIfEnough(ctx context.Context, productID string, qty int64) (bool, error) {
	res := r.products(ctx).
		Where("id = ? AND stock >= ?", productID, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *InventoryGormRepository) IncreaseStock(ctx context.Context, productID string, qty int64) error {
	return mustAffect(r.products(ctx).Where("id = ?", productID).Update("stock", gorm.Expr("stock + ?", qty)))
}

func (r *InventoryGormRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	return r.db.WithContext(ctx).Create(&adj).Error
}

func (r *InventoryGormRepository) ListAdjustments(ctx context.Context, productID string, limit int) ([]model.InventoryAdjustment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out := []model.InventoryAdjustment{}
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

package repository

import (
	"context"

	"thekua/internal/domain/model"

	"gorm.io/gorm"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// 決済完了後のカート削除。2回目以降は何もしない
func (r *CartGormRepository) DeleteByUserID(ctx context.Context, userID string) error {
	var cartIDs []string
	if err := r.db.WithContext(ctx).Model(&model.Cart{}).
		Where("user_id = ?", userID).
		Pluck("id", &cartIDs).Error; err != nil {
		return err
	}
	if len(cartIDs) == 0 {
		return nil
	}

	//cart_itemsを全削除
	if err := r.db.WithContext(ctx).Where("cart_id IN ?", cartIDs).Delete(&model.CartItem{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id IN ?", cartIDs).Delete(&model.Cart{}).Error
}

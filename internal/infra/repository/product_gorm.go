package repository

import (
	"context"

	"thekua/internal/domain/model"

	"gorm.io/gorm"
)

type ProductGormRepository struct {
	db *gorm.DB
}

func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

// 削除済み(soft delete)は見つからない扱い。非公開(is_active=false)でも在庫は動かせる
func (r *ProductGormRepository) FindByID(ctx context.Context, id string) (model.Product, error) {
	return findOne[model.Product](ctx, r.db, "id = ?", id)
}

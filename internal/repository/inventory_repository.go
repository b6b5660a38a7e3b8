package repository

import (
	"context"

	"thekua/internal/domain/model"
)

type InventoryRepository interface {
	// 管理者による上書き
	SetStock(ctx context.Context, productID string, newStock int64) error
	// stock >= qty のときだけ減らす。減らせなければfalse
	DecreaseStockIfEnough(ctx context.Context, productID string, qty int64) (bool, error)
	// キャンセル時の戻し
	IncreaseStock(ctx context.Context, productID string, qty int64) error
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
	// 新しい順
	ListAdjustments(ctx context.Context, productID string, limit int) ([]model.InventoryAdjustment, error)
}

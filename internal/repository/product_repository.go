package repository

import (
	"context"

	"thekua/internal/domain/model"
)

// 決済フローで使う読み取りだけ。
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (model.Product, error)
}

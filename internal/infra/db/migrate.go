package db

import (
	"thekua/internal/domain/model"

	"gorm.io/gorm"
)

// 決済フローが使うテーブル
func Models() []interface{} {
	return []interface{}{
		&model.Product{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.PaymentEvent{},
		&model.Refund{},
		&model.InventoryAdjustment{},
		&model.AuditLog{},
	}
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(Models()...)
}

package model

import "github.com/shopspring/decimal"

// 注文時点のスナップショット。商品を後で編集しても変わらない。
type OrderItem struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"-"`
	OrderID   string          `gorm:"type:varchar(64);not null;index" json:"-"`
	ProductID string          `gorm:"type:varchar(64);not null;index" json:"productId"`
	Title     string          `gorm:"type:varchar(255);not null" json:"title"`
	Image     string          `gorm:"type:text" json:"image"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Quantity  int64           `gorm:"not null" json:"quantity"`
}

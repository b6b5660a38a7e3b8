package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 決済フローが参照する項目だけ。カタログ管理は別。
type Product struct {
	ID        string          `gorm:"type:varchar(64);primaryKey" json:"id"`
	Title     string          `gorm:"type:varchar(255);not null" json:"title"`
	Image     string          `gorm:"type:text" json:"image"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Stock     int64           `gorm:"not null" json:"stock"`
	IsActive  bool            `gorm:"not null;default:true" json:"isActive"`
	CreatedAt time.Time       `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime" json:"updatedAt"`
	DeletedAt gorm.DeletedAt  `gorm:"index" json:"-"`
}

package model

import "time"

//在庫変動の履歴
//注文起因ならOrderID、管理者の手動調整ならAdminUserIDが入る

type InventoryAdjustment struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   string    `gorm:"type:varchar(64);not null;index" json:"productId"`
	OrderID     string    `gorm:"type:varchar(64);index" json:"orderId"`
	AdminUserID int64     `gorm:"index" json:"adminUserId"`
	Delta       int64     `gorm:"not null" json:"delta"`
	Reason      string    `gorm:"type:varchar(255);not null" json:"reason"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
}

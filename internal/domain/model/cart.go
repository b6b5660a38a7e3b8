package model

import "time"

// 1ユーザーにつき1つ
type Cart struct {
	ID        string     `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID    string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"userId"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt time.Time  `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}

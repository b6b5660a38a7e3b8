package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type RefundState string

const (
	RefundStatePending   RefundState = "PENDING"
	RefundStateConfirmed RefundState = "CONFIRMED"
	RefundStateCompleted RefundState = "COMPLETED"
	RefundStateFailed    RefundState = "FAILED"
)

type Refund struct {
	//こちらで採番する返金ID
	ID              string          `gorm:"type:varchar(63);primaryKey" json:"merchantRefundId"`
	OrderID         string          `gorm:"type:varchar(64);not null;index" json:"orderId"`
	MerchantOrderID string          `gorm:"type:varchar(63);not null;index" json:"merchantOrderId"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	AmountPaise     int64           `gorm:"not null" json:"amountPaise"`
	State           RefundState     `gorm:"type:varchar(20);not null" json:"state"`
	GatewayRefundID string          `gorm:"type:varchar(128)" json:"gatewayRefundId"`
	CreatedAt       time.Time       `gorm:"not null" json:"createdAt"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updatedAt"`
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// 現在の決済手段はPhonePeのみ
const PaymentMethodPhonePe = "phonepe"

// 配送先
type AddressInfo struct {
	Address string `gorm:"type:varchar(500);not null" json:"address"`
	City    string `gorm:"type:varchar(100);not null" json:"city"`
	Pincode string `gorm:"type:varchar(20);not null" json:"pincode"`
	Phone   string `gorm:"type:varchar(30);not null" json:"phone"`
	Notes   string `gorm:"type:text" json:"notes"`
}

type Order struct {
	ID     string `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID string `gorm:"type:varchar(64);not null;index" json:"userId"`
	CartID string `gorm:"type:varchar(64)" json:"cartId"`

	AddressInfo   AddressInfo `gorm:"embedded;embeddedPrefix:address_" json:"addressInfo"`
	CustomerName  string      `gorm:"type:varchar(255)" json:"customerName"`
	CustomerEmail string      `gorm:"type:varchar(255)" json:"customerEmail"`

	OrderStatus   OrderStatus   `gorm:"type:varchar(20);not null;index" json:"orderStatus"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;index" json:"paymentStatus"`
	PaymentMethod string        `gorm:"type:varchar(20);not null" json:"paymentMethod"`

	//こちらで採番するID（ゲートウェイとの突き合わせ用）
	MerchantTransactionID string `gorm:"type:varchar(63);not null;uniqueIndex" json:"merchantTransactionId"`
	//ゲートウェイ側のID
	GatewayOrderID       string `gorm:"type:varchar(128)" json:"gatewayOrderId"`
	GatewayTransactionID string `gorm:"type:varchar(128)" json:"gatewayTransactionId"`
	GatewayState         string `gorm:"type:varchar(20)" json:"gatewayState"`
	PaymentURL           string `gorm:"type:text" json:"paymentUrl"`

	//クライアント申告の合計（作成時に固定）
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"totalAmount"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

package model

import "time"

// どこで観測した状態か
type PaymentEventSource string

const (
	PaymentEventSourceCreate  PaymentEventSource = "create"
	PaymentEventSourceCapture PaymentEventSource = "capture"
	PaymentEventSourcePoll    PaymentEventSource = "poll"
	PaymentEventSourceWebhook PaymentEventSource = "webhook"
	PaymentEventSourceRefund  PaymentEventSource = "refund"
)

// ゲートウェイから受け取った状態の記録（追記のみ）
type PaymentEvent struct {
	ID              int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	MerchantOrderID string             `gorm:"type:varchar(63);not null;index" json:"merchantOrderId"`
	Source          PaymentEventSource `gorm:"type:varchar(20);not null" json:"source"`
	Event           string             `gorm:"type:varchar(100)" json:"event"`
	State           string             `gorm:"type:varchar(20)" json:"state"`
	PayloadJSON     string             `gorm:"type:text" json:"payloadJson"`
	CreatedAt       time.Time          `gorm:"not null;index" json:"createdAt"`
}

package model

import "time"

type OrderEventType string

const (
	OrderEventPaid           OrderEventType = "order.paid"
	OrderEventPaymentFailed  OrderEventType = "order.payment_failed"
	OrderEventCancelled      OrderEventType = "order.cancelled"
	// 取消済みの注文に支払いが届いた
	OrderEventRefundRequired OrderEventType = "order.refund_required"
)

// 決済確定などの後にブローカーへ流す内容
type OrderEvent struct {
	Type                  OrderEventType `json:"type"`
	OrderID               string         `json:"orderId"`
	UserID                string         `json:"userId"`
	MerchantTransactionID string         `json:"merchantTransactionId"`
	OrderStatus           OrderStatus    `json:"orderStatus"`
	PaymentStatus         PaymentStatus  `json:"paymentStatus"`
	TotalAmount           string         `json:"totalAmount"`
	OccurredAt            time.Time      `json:"occurredAt"`
}

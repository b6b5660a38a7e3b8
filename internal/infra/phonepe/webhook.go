package phonepe

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Webhookのイベント名
const (
	EventCheckoutOrderCompleted = "checkout.order.completed"
	EventCheckoutOrderFailed    = "checkout.order.failed"
	EventRefundCompleted        = "pg.refund.completed"
	EventRefundFailed           = "pg.refund.failed"
)

type WebhookEvent struct {
	Event   string         `json:"event"`
	Payload WebhookPayload `json:"payload"`
}

type WebhookPayload struct {
	OrderID                 string          `json:"orderId"`
	MerchantOrderID         string          `json:"merchantOrderId"`
	MerchantRefundID        string          `json:"merchantRefundId"`
	OriginalMerchantOrderID string          `json:"originalMerchantOrderId"`
	RefundID                string          `json:"refundId"`
	State                   State           `json:"state"`
	Amount                  int64           `json:"amount"`
	ExpireAt                int64           `json:"expireAt"`
	PaymentDetails          []PaymentDetail `json:"paymentDetails"`
}

func (e WebhookEvent) IsRefund() bool {
	return strings.HasPrefix(e.Event, "pg.refund.")
}

func ParseWebhook(body []byte) (WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return WebhookEvent{}, fmt.Errorf("decode webhook: %w", err)
	}
	return ev, nil
}

func webhookAuthHash(username, password string) string {
	if username == "" || password == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(username + ":" + password))
	return hex.EncodeToString(sum[:])
}

// AuthorizationヘッダがSHA256(username:password)と一致するか
func (c *Client) VerifyWebhook(authorization string) bool {
	if c.webhookAuthHash == "" {
		return false
	}
	got := strings.ToLower(strings.TrimSpace(authorization))
	// 受け付けるのは "<hash>" と "SHA256 <hash>" だけ
	got = strings.TrimPrefix(got, "sha256 ")
	return subtle.ConstantTimeCompare([]byte(got), []byte(c.webhookAuthHash)) == 1
}

package phonepe

import (
	"github.com/shopspring/decimal"
)

// 注文/返金の状態（ゲートウェイ側）
type State string

const (
	StatePending   State = "PENDING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
	// 返金で使う
	StateConfirmed State = "CONFIRMED"
)

const paymentFlowCheckout = "PG_CHECKOUT"

// 金額（ルピー）をパイサに変換。小数第3位以下は四捨五入。
func AmountToPaise(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

type CreatePaymentRequest struct {
	MerchantOrderID string
	AmountPaise     int64
	RedirectURL     string
	// 0ならゲートウェイのデフォルト
	ExpireAfterSeconds int64
	MetaInfo           map[string]string
}

type payRequest struct {
	MerchantOrderID string            `json:"merchantOrderId"`
	Amount          int64             `json:"amount"`
	ExpireAfter     int64             `json:"expireAfter,omitempty"`
	MetaInfo        map[string]string `json:"metaInfo,omitempty"`
	PaymentFlow     paymentFlow       `json:"paymentFlow"`
}

type paymentFlow struct {
	Type         string       `json:"type"`
	Message      string       `json:"message,omitempty"`
	MerchantUrls merchantUrls `json:"merchantUrls"`
}

type merchantUrls struct {
	RedirectURL string `json:"redirectUrl"`
}

type CreatePaymentResponse struct {
	OrderID     string `json:"orderId"`
	State       State  `json:"state"`
	ExpireAt    int64  `json:"expireAt"`
	RedirectURL string `json:"redirectUrl"`
}

type PaymentDetail struct {
	PaymentMode       string `json:"paymentMode"`
	TransactionID     string `json:"transactionId"`
	Timestamp         int64  `json:"timestamp"`
	Amount            int64  `json:"amount"`
	State             State  `json:"state"`
	ErrorCode         string `json:"errorCode,omitempty"`
	DetailedErrorCode string `json:"detailedErrorCode,omitempty"`
}

type OrderStatusResponse struct {
	OrderID        string          `json:"orderId"`
	State          State           `json:"state"`
	Amount         int64           `json:"amount"`
	ExpireAt       int64           `json:"expireAt"`
	PaymentDetails []PaymentDetail `json:"paymentDetails"`
}

// 成功した試行のtransactionId。無ければ最後の試行。
func TransactionIDOf(details []PaymentDetail) string {
	for i := len(details) - 1; i >= 0; i-- {
		if details[i].State == StateCompleted {
			return details[i].TransactionID
		}
	}
	if len(details) > 0 {
		return details[len(details)-1].TransactionID
	}
	return ""
}

type RefundRequest struct {
	MerchantRefundID        string `json:"merchantRefundId"`
	OriginalMerchantOrderID string `json:"originalMerchantOrderId"`
	Amount                  int64  `json:"amount"`
}

type RefundResponse struct {
	RefundID string `json:"refundId"`
	Amount   int64  `json:"amount"`
	State    State  `json:"state"`
}

type RefundStatusResponse struct {
	MerchantRefundID        string          `json:"merchantRefundId"`
	OriginalMerchantOrderID string          `json:"originalMerchantOrderId"`
	Amount                  int64           `json:"amount"`
	State                   State           `json:"state"`
	PaymentDetails          []PaymentDetail `json:"paymentDetails"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	IssuedAt    int64  `json:"issued_at"`
	ExpiresAt   int64  `json:"expires_at"`
}

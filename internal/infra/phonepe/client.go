package phonepe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"thekua/internal/config"
	"thekua/internal/logger"

	"go.uber.org/zap"
)

// PhonePe Standard Checkout v2 のクライアント
type Client struct {
	cfg    config.PhonePeConfig
	http   *http.Client
	log    *zap.Logger
	now    func() time.Time
	tokens tokenCache

	webhookAuthHash string
}

func NewClient(cfg config.PhonePeConfig, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:             cfg,
		http:            &http.Client{Timeout: timeout},
		log:             logger.OrNop(log).Named("phonepe"),
		now:             time.Now,
		webhookAuthHash: webhookAuthHash(cfg.WebhookUsername, cfg.WebhookPassword),
	}
}

// 決済セッションを作ってリダイレクトURLを返す
func (c *Client) CreatePayment(ctx context.Context, in CreatePaymentRequest) (CreatePaymentResponse, error) {
	if in.MerchantOrderID == "" {
		return CreatePaymentResponse{}, fmt.Errorf("merchant order id is required")
	}
	if in.AmountPaise <= 0 {
		return CreatePaymentResponse{}, fmt.Errorf("amount must be positive: %d", in.AmountPaise)
	}

	body := payRequest{
		MerchantOrderID: in.MerchantOrderID,
		Amount:          in.AmountPaise,
		ExpireAfter:     in.ExpireAfterSeconds,
		MetaInfo:        in.MetaInfo,
		PaymentFlow: paymentFlow{
			Type:         paymentFlowCheckout,
			MerchantUrls: merchantUrls{RedirectURL: in.RedirectURL},
		},
	}

	var out CreatePaymentResponse
	if _, err := c.doJSON(ctx, http.MethodPost, "/checkout/v2/pay", body, &out); err != nil {
		return CreatePaymentResponse{}, err
	}
	if out.RedirectURL == "" {
		return CreatePaymentResponse{}, fmt.Errorf("phonepe: pay response has no redirectUrl")
	}

	c.log.Info("payment session created",
		zap.String("merchant_order_id", in.MerchantOrderID),
		zap.String("gateway_order_id", out.OrderID),
		zap.String("state", string(out.State)),
	)
	return out, nil
}

// 注文状態の照会。rawは応答そのまま。
func (c *Client) OrderStatus(ctx context.Context, merchantOrderID string) (OrderStatusResponse, json.RawMessage, error) {
	path := "/checkout/v2/order/" + url.PathEscape(merchantOrderID) + "/status?details=false"

	var out OrderStatusResponse
	raw, err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return OrderStatusResponse{}, nil, err
	}
	return out, raw, nil
}

func (c *Client) Refund(ctx context.Context, in RefundRequest) (RefundResponse, error) {
	if in.MerchantRefundID == "" || in.OriginalMerchantOrderID == "" {
		return RefundResponse{}, fmt.Errorf("merchant refund id and original merchant order id are required")
	}
	if in.Amount <= 0 {
		return RefundResponse{}, fmt.Errorf("refund amount must be positive: %d", in.Amount)
	}

	var out RefundResponse
	if _, err := c.doJSON(ctx, http.MethodPost, "/payments/v2/refund", in, &out); err != nil {
		return RefundResponse{}, err
	}
	return out, nil
}

func (c *Client) RefundStatus(ctx context.Context, merchantRefundID string) (RefundStatusResponse, error) {
	path := "/payments/v2/refund/" + url.PathEscape(merchantRefundID) + "/status"

	var out RefundStatusResponse
	if _, err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return RefundStatusResponse{}, err
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method string, path string, in interface{}, out interface{}) (json.RawMessage, error) {
	authz, err := c.authorization(ctx)
	if err != nil {
		return nil, fmt.Errorf("phonepe auth: %w", err)
	}

	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", authz)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		//トークンが失効していたら次回取り直す
		if resp.StatusCode == http.StatusUnauthorized {
			c.tokens.invalidate()
		}
		ae := newAPIError(resp.StatusCode, body)
		c.log.Warn("phonepe request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", ae.Code),
		)
		return nil, ae
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return json.RawMessage(body), nil
}

package phonepe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// 残りがこれを切ったら取り直す
const tokenRefreshMargin = 180 * time.Second

type tokenCache struct {
	mu        sync.Mutex
	token     string
	tokenType string
	expiresAt time.Time
}

func (t *tokenCache) usable(now time.Time) bool {
	return t.token != "" && t.expiresAt.Sub(now) > tokenRefreshMargin
}

func (t *tokenCache) invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = ""
	t.expiresAt = time.Time{}
}

// 有効なトークンを返す。期限が近ければ取り直す。
// 取得中はロックを持つので同時に取りに行くことはない。
func (c *Client) authorization(ctx context.Context) (string, error) {
	c.tokens.mu.Lock()
	defer c.tokens.mu.Unlock()

	now := c.now()
	if c.tokens.usable(now) {
		return c.tokens.tokenType + " " + c.tokens.token, nil
	}

	tr, err := c.fetchToken(ctx)
	if err != nil {
		return "", err
	}

	expiresAt := time.Unix(tr.ExpiresAt, 0)
	if tr.ExpiresAt <= 0 {
		expiresAt = now.Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	tokenType := tr.TokenType
	if tokenType == "" {
		tokenType = "O-Bearer"
	}

	c.tokens.token = tr.AccessToken
	c.tokens.tokenType = tokenType
	c.tokens.expiresAt = expiresAt

	c.log.Debug("phonepe token refreshed", zap.Time("expires_at", expiresAt))
	return tokenType + " " + tr.AccessToken, nil
}

func (c *Client) fetchToken(ctx context.Context) (tokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_version", c.cfg.ClientVersion)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("grant_type", "client_credentials")

	endpoint := strings.TrimRight(c.cfg.AuthURL, "/") + "/v1/oauth/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("call token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return tokenResponse{}, newAPIError(resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return tokenResponse{}, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return tokenResponse{}, fmt.Errorf("token response has no access_token")
	}
	return tr, nil
}

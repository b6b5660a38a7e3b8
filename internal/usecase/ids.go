package usecase

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ゲートウェイ側の制約: 63文字以内、英数字と _ -
var merchantIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,63}$`)

func validMerchantID(id string) bool {
	return merchantIDPattern.MatchString(id)
}

// 例: TK3f2a...(32桁)_1700000000000
func newMerchantID(prefix string, uuidStr string, now time.Time) string {
	compact := strings.ReplaceAll(uuidStr, "-", "")
	return prefix + compact + "_" + strconv.FormatInt(now.UnixMilli(), 10)
}

// 決済後の戻り先。フロントはこのクエリでcaptureを呼ぶ。
func buildRedirectURL(base string, orderID string, merchantID string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("orderId", orderID)
	q.Set("merchantTransactionId", merchantID)
	u.RawQuery = q.Encode()
	return u.String()
}

package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"thekua/internal/infra/phonepe"
)

type HTTPError struct {
	Status  int
	Message string
	// ゲートウェイの生のエラー応答（診断用）
	Details json.RawMessage
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// ゲートウェイ失敗は500。応答ボディがあれば付ける。
func gatewayError(err error, message string) error {
	he := &HTTPError{Status: http.StatusInternalServerError, Message: message}
	if ae, ok := phonepe.AsAPIError(err); ok {
		he.Details = ae.Body
	}
	return he
}

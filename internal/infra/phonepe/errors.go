package phonepe

import (
	"encoding/json"
	"errors"
	"fmt"
)

// 2xx以外の応答。Bodyは呼び出し元にそのまま返す。
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       json.RawMessage
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("phonepe: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("phonepe: status %d", e.StatusCode)
}

func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	ok := errors.As(err, &ae)
	return ae, ok
}

func newAPIError(status int, body []byte) *APIError {
	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &parsed)

	ae := &APIError{StatusCode: status, Code: parsed.Code, Message: parsed.Message}
	if json.Valid(body) {
		ae.Body = json.RawMessage(body)
	} else if len(body) > 0 {
		//JSONでなければ文字列として包む
		quoted, _ := json.Marshal(string(body))
		ae.Body = quoted
	}
	return ae
}

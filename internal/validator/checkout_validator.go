package validator

import (
	"regexp"
	"strings"
)

var (
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	pincodePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)
)

// 簡易メール形式をチェック
func IsEmailLike(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// インドのPINコード（6桁、先頭は0以外）
func IsPincode(s string) bool {
	return pincodePattern.MatchString(strings.TrimSpace(s))
}

// 空白、ハイフン、+91を許して10桁の番号か
func IsPhoneLike(s string) bool {
	digits := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, r)
		case r == ' ' || r == '-' || r == '+':
		default:
			return false
		}
	}
	n := len(digits)
	if n == 12 && string(digits[:2]) == "91" {
		n = 10
	}
	return n == 10
}

package validator

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// 入力が不正
var ErrInvalidInput = errors.New("invalid input")

// パスの :id など。1以上の整数だけ通す
func PositiveID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidInput
	}
	return id, nil
}

// 空ならdef。負数はエラー
func IntOr(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, ErrInvalidInput
	}
	return n, nil
}

// "15m" などのGo形式。空ならdef
func DurationOr(raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, ErrInvalidInput
	}
	return d, nil
}

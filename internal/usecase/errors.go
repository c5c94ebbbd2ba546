package usecase

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs-labo46/ec-checkout/internal/domain/payment"
)

// 業務エラーの種類。HTTPError.Err に入るので errors.Is で判定できる。
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidSignature  = payment.ErrInvalidSignature
	ErrUpstreamGateway   = errors.New("upstream gateway error")
)

type HTTPError struct {
	Status  int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
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

// 種類ごとのHTTPステータス
func statusOf(kind error) int {
	switch kind {
	case ErrInvalidArgument, ErrEmptyCart, ErrInvalidSignature:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInsufficientStock:
		return http.StatusConflict
	case ErrUpstreamGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newKindError(kind error, message string) error {
	return &HTTPError{Status: statusOf(kind), Message: message, Err: kind}
}

func invalidArgument(message string) error { return newKindError(ErrInvalidArgument, message) }

func notFound() error { return newKindError(ErrNotFound, "not found") }

func insufficientStock(message string) error { return newKindError(ErrInsufficientStock, message) }

// DBなど基盤の失敗。元のエラーは Err に残す。
func dbError(err error) error {
	return &HTTPError{Status: http.StatusInternalServerError, Message: "db error", Err: err}
}

func unauthorized() error {
	return NewHTTPError(http.StatusUnauthorized, "unauthorized")
}

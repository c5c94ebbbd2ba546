package payment

import (
	"context"
	"errors"
)

var (
	// ErrInvalidSignature is returned when a webhook payload cannot be verified.
	ErrInvalidSignature = errors.New("payment: invalid webhook signature")
	// ErrUpstream wraps any failure talking to the payment provider.
	ErrUpstream = errors.New("payment: upstream gateway error")
)

// EventPaymentSucceeded is the only event type the reconciler acts on.
const EventPaymentSucceeded = "payment_intent.succeeded"

type Intent struct {
	ID           string
	ClientSecret string
}

type Event struct {
	ID              string
	Type            string
	PaymentIntentID string
}

// Gateway is the external payment processor.
type Gateway interface {
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (Intent, error)
	ParseWebhook(payload []byte, signature string) (Event, error)
}

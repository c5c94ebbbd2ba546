package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rs-labo46/ec-checkout/internal/domain/payment"
)

const testWebhookSecret = "whsec_test_secret"

// Stripe-Signature と同じ形式（t=...,v1=hmac）を作る
func signPayload(t *testing.T, secret string, payload []byte, ts time.Time) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	_, err := fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	require.NoError(t, err)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func succeededPayload(eventID, intentID string) []byte {
	return []byte(fmt.Sprintf(`{
  "id": %q,
  "object": "event",
  "api_version": "2023-10-16",
  "type": "payment_intent.succeeded",
  "data": {"object": {"id": %q, "object": "payment_intent", "amount": 2500, "currency": "jpy"}}
}`, eventID, intentID))
}

func TestStripeGateway_ParseWebhook_Valid(t *testing.T) {
	g := NewStripeGateway("sk_test_dummy", testWebhookSecret)
	payload := succeededPayload("evt_1", "pi_123")

	ev, err := g.ParseWebhook(payload, signPayload(t, testWebhookSecret, payload, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, payment.EventPaymentSucceeded, ev.Type)
	assert.Equal(t, "pi_123", ev.PaymentIntentID)
}

func TestStripeGateway_ParseWebhook_WrongSecret(t *testing.T) {
	g := NewStripeGateway("sk_test_dummy", testWebhookSecret)
	payload := succeededPayload("evt_1", "pi_123")

	_, err := g.ParseWebhook(payload, signPayload(t, "whsec_other", payload, time.Now()))
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)
}

func TestStripeGateway_ParseWebhook_TamperedBody(t *testing.T) {
	g := NewStripeGateway("sk_test_dummy", testWebhookSecret)
	payload := succeededPayload("evt_1", "pi_123")
	sig := signPayload(t, testWebhookSecret, payload, time.Now())

	_, err := g.ParseWebhook(succeededPayload("evt_1", "pi_999"), sig)
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)
}

func TestStripeGateway_ParseWebhook_MissingOrStaleHeader(t *testing.T) {
	g := NewStripeGateway("sk_test_dummy", testWebhookSecret)
	payload := succeededPayload("evt_1", "pi_123")

	_, err := g.ParseWebhook(payload, "")
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)

	_, err = g.ParseWebhook(payload, signPayload(t, testWebhookSecret, payload, time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)
}

func TestStripeGateway_ParseWebhook_OtherEventType(t *testing.T) {
	g := NewStripeGateway("sk_test_dummy", testWebhookSecret)
	payload := []byte(`{"id":"evt_2","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`)

	ev, err := g.ParseWebhook(payload, signPayload(t, testWebhookSecret, payload, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "customer.created", ev.Type)
	assert.Empty(t, ev.PaymentIntentID)
}

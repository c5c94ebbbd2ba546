package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rs-labo46/ec-checkout/internal/domain/event"
	"github.com/rs-labo46/ec-checkout/internal/domain/model"
	"github.com/rs-labo46/ec-checkout/internal/domain/payment"
	"github.com/rs-labo46/ec-checkout/internal/infra/memory"
	"github.com/rs-labo46/ec-checkout/internal/metrics"
	repo "github.com/rs-labo46/ec-checkout/internal/repository"
	"github.com/rs-labo46/ec-checkout/internal/usecase"
)

// =====================
// 決済ゲートウェイの代役
// =====================

const validSignature = "valid-signature"

// fakeGateway は PaymentIntent を連番で発行し、署名は validSignature だけ通す。
type fakeGateway struct {
	mu      sync.Mutex
	seq     int
	amounts map[string]int64
	calls   []map[string]string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{amounts: map[string]int64{}}
}

func (g *fakeGateway) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	id := fmt.Sprintf("pi_%d", g.seq)
	g.amounts[id] = amount
	g.calls = append(g.calls, metadata)
	return payment.Intent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (g *fakeGateway) ParseWebhook(payload []byte, signature string) (payment.Event, error) {
	if signature != validSignature {
		return payment.Event{}, payment.ErrInvalidSignature
	}
	var body struct {
		ID              string `json:"id"`
		Type            string `json:"type"`
		PaymentIntentID string `json:"payment_intent_id"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return payment.Event{}, payment.ErrInvalidSignature
	}
	return payment.Event{ID: body.ID, Type: body.Type, PaymentIntentID: body.PaymentIntentID}, nil
}

func eventPayload(eventID, eventType, intentID string) []byte {
	b, _ := json.Marshal(map[string]string{
		"id":                eventID,
		"type":              eventType,
		"payment_intent_id": intentID,
	})
	return b
}

func succeeded(eventID, intentID string) []byte {
	return eventPayload(eventID, payment.EventPaymentSucceeded, intentID)
}

// testify版（失敗系用）
type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (payment.Intent, error) {
	args := m.Called(ctx, amount, currency, metadata)
	intent, _ := args.Get(0).(payment.Intent)
	return intent, args.Error(1)
}

func (m *GatewayMock) ParseWebhook(payload []byte, signature string) (payment.Event, error) {
	args := m.Called(payload, signature)
	ev, _ := args.Get(0).(payment.Event)
	return ev, args.Error(1)
}

// =====================
// webhookの周辺
// =====================

type mapDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMapDeduper() *mapDeduper { return &mapDeduper{seen: map[string]bool{}} }

func (d *mapDeduper) Seen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[id], nil
}

func (d *mapDeduper) Remember(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[id] = true
	return nil
}

type brokenDeduper struct{}

func (brokenDeduper) Seen(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}
func (brokenDeduper) Remember(context.Context, string) error { return errors.New("redis down") }

type capturePublisher struct {
	mu     sync.Mutex
	events []event.OrderEvent
}

func (p *capturePublisher) Publish(_ context.Context, evs ...event.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evs...)
	return nil
}

func (p *capturePublisher) ofType(t event.Type) []event.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []event.OrderEvent
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// =====================
// fixture
// =====================

type fixture struct {
	ctx       context.Context
	store     *memory.Store
	gateway   *fakeGateway
	deduper   *mapDeduper
	publisher *capturePublisher
	metrics   *metrics.Metrics

	cart     *usecase.CartUsecase
	checkout *usecase.CheckoutUsecase
	orders   *usecase.OrderUsecase
	webhook  *usecase.WebhookUsecase
	admin    *usecase.AdminOrderUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:       context.Background(),
		store:     memory.NewStore(),
		gateway:   newFakeGateway(),
		deduper:   newMapDeduper(),
		publisher: &capturePublisher{},
		metrics:   metrics.New(),
	}
	s := f.store
	f.cart = usecase.NewCartUsecase(s.Carts(), s.CartItems(), s.Products())
	f.checkout = usecase.NewCheckoutUsecase(s, s.Carts(), s.CartItems(), s.Products(), s.Orders(), f.gateway, "jpy", f.metrics)
	f.orders = usecase.NewOrderUsecase(s)
	f.webhook = usecase.NewWebhookUsecase(s, s.Orders(), f.gateway, f.deduper, f.publisher, f.metrics)
	f.admin = usecase.NewAdminOrderUsecase(s, s.AuditLogs())
	return f
}

func (f *fixture) addProduct(t *testing.T, name string, price, stock int64) model.Product {
	t.Helper()
	p, err := f.store.Products().Create(f.ctx, model.Product{Name: name, Price: price, Stock: stock})
	require.NoError(t, err)
	return p
}

func (f *fixture) stockOf(t *testing.T, productID int64) int64 {
	t.Helper()
	p, err := f.store.Products().FindByID(f.ctx, productID)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) order(t *testing.T, orderID int64) model.Order {
	t.Helper()
	o, err := f.store.Orders().FindByID(f.ctx, orderID)
	require.NoError(t, err)
	return o
}

func (f *fixture) auditLogs(t *testing.T, action model.AuditAction) []model.AuditLog {
	t.Helper()
	logs, err := f.store.AuditLogs().List(f.ctx, repo.AuditLogFilter{Action: &action, Limit: 200})
	require.NoError(t, err)
	return logs
}

// カートに入れてcheckoutまで進める
func (f *fixture) checkoutWith(t *testing.T, userID int64, lines map[int64]int64) usecase.CheckoutOutput {
	t.Helper()
	for productID, qty := range lines {
		_, err := f.cart.AddToCart(f.ctx, userID, usecase.AddCartInput{ProductID: productID, Quantity: qty})
		require.NoError(t, err)
	}
	out, err := f.checkout.Checkout(f.ctx, userID, usecase.CheckoutInput{ShippingAddress: "1-2-3 Shibuya, Tokyo"})
	require.NoError(t, err)
	return out
}

func (f *fixture) intentOf(t *testing.T, orderID int64) string {
	t.Helper()
	o := f.order(t, orderID)
	require.NotNil(t, o.PaymentIntentID)
	return *o.PaymentIntentID
}

func assertKind(t *testing.T, err error, kind error) {
	t.Helper()
	if assert.Error(t, err) {
		assert.ErrorIs(t, err, kind, "err=%v", err)
	}
}

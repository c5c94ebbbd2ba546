package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rs-labo46/ec-checkout/internal/config"
	"github.com/rs-labo46/ec-checkout/internal/domain/model"
	"github.com/rs-labo46/ec-checkout/internal/domain/payment"
	"github.com/rs-labo46/ec-checkout/internal/handler"
	"github.com/rs-labo46/ec-checkout/internal/infra/memory"
	"github.com/rs-labo46/ec-checkout/internal/metrics"
	repo "github.com/rs-labo46/ec-checkout/internal/repository"
	"github.com/rs-labo46/ec-checkout/internal/server"
	"github.com/rs-labo46/ec-checkout/internal/usecase"
)

const (
	testSecret = "test-secret"
	goodSig    = "good"
)

type stubGateway struct {
	mu   sync.Mutex
	seq  int
	fail bool
}

func (g *stubGateway) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return payment.Intent{}, fmt.Errorf("%w: connection refused", payment.ErrUpstream)
	}
	g.seq++
	id := fmt.Sprintf("pi_%d", g.seq)
	return payment.Intent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (g *stubGateway) ParseWebhook(payload []byte, signature string) (payment.Event, error) {
	if signature != goodSig {
		return payment.Event{}, payment.ErrInvalidSignature
	}
	var body struct {
		ID     string `json:"id"`
		Type   string `json:"type"`
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return payment.Event{}, payment.ErrInvalidSignature
	}
	return payment.Event{ID: body.ID, Type: body.Type, PaymentIntentID: body.Intent}, nil
}

// 注文の検索だけ落ちるリポジトリ
type brokenOrders struct {
	repo.OrderRepository
}

func (brokenOrders) FindByPaymentIntentID(context.Context, string) (model.Order, error) {
	return model.Order{}, errors.New("connection reset")
}

type env struct {
	e     *echo.Echo
	store *memory.Store
	gw    *stubGateway
	m     *metrics.Metrics
}

func newEnv(t *testing.T, orders repo.OrderRepository) *env {
	t.Helper()

	s := memory.NewStore()
	if orders == nil {
		orders = s.Orders()
	}
	gw := &stubGateway{}
	m := metrics.New()

	checkout := usecase.NewCheckoutUsecase(s, s.Carts(), s.CartItems(), s.Products(), s.Orders(), gw, "jpy", m)
	h := server.Handlers{
		Cart:       handler.NewCartHandler(usecase.NewCartUsecase(s.Carts(), s.CartItems(), s.Products())),
		Order:      handler.NewOrderHandler(checkout, usecase.NewOrderUsecase(s)),
		Webhook:    handler.NewWebhookHandler(usecase.NewWebhookUsecase(s, orders, gw, nil, nil, m)),
		AdminOrder: handler.NewAdminOrderHandler(usecase.NewAdminOrderUsecase(s, s.AuditLogs())),
	}

	cfg := config.Config{JWTSecret: testSecret}
	return &env{e: server.New(cfg, zap.NewNop(), m, h), store: s, gw: gw, m: m}
}

func token(t *testing.T, userID int64, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (v *env) do(method, path, tok, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for k, val := range header {
		req.Header.Set(k, val)
	}
	rec := httptest.NewRecorder()
	v.e.ServeHTTP(rec, req)
	return rec
}

func (v *env) webhook(eventID, intent, sig string) *httptest.ResponseRecorder {
	body := fmt.Sprintf(`{"id":%q,"type":%q,"intent":%q}`, eventID, payment.EventPaymentSucceeded, intent)
	return v.do(http.MethodPost, "/orders/webhook", "", body, map[string]string{"Stripe-Signature": sig})
}

func (v *env) product(t *testing.T, price, stock int64) model.Product {
	t.Helper()
	p, err := v.store.Products().Create(context.Background(), model.Product{Name: "Tea", Price: price, Stock: stock})
	require.NoError(t, err)
	return p
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthzAndMetrics(t *testing.T) {
	v := newEnv(t, nil)

	rec := v.do(http.MethodGet, "/healthz", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = v.do(http.MethodGet, "/metrics", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestCheckoutAndWebhookFlow(t *testing.T) {
	v := newEnv(t, nil)
	p := v.product(t, 1500, 5)
	user := token(t, 7, "USER")

	rec := v.do(http.MethodPost, "/cart/items", user, fmt.Sprintf(`{"product_id":%d,"quantity":2}`, p.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cart := decode[usecase.CartResponse](t, rec)
	assert.Equal(t, int64(3000), cart.Total)

	rec = v.do(http.MethodPost, "/orders/checkout", user, `{"shipping_address":"1-1 Chiyoda, Tokyo"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode[usecase.CheckoutOutput](t, rec)
	assert.Equal(t, int64(3000), out.Total)
	assert.Equal(t, "pi_1_secret", out.ClientSecret)

	rec = v.webhook("evt_1", "pi_1", goodSig)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	rec = v.do(http.MethodGet, fmt.Sprintf("/orders/%d", out.OrderID), user, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	order := decode[usecase.OrderOutput](t, rec)
	assert.Equal(t, "PAID", order.Status)
	assert.Equal(t, "pi_1", order.PaymentIntentID)

	rec = v.do(http.MethodGet, "/cart", user, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[usecase.CartResponse](t, rec).Items)

	//他人からは見えない
	rec = v.do(http.MethodGet, fmt.Sprintf("/orders/%d", out.OrderID), token(t, 8, "USER"), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookAlwaysAcknowledges(t *testing.T) {
	v := newEnv(t, nil)
	p := v.product(t, 1000, 5)
	user := token(t, 1, "USER")

	require.Equal(t, http.StatusOK, v.do(http.MethodPost, "/cart/items", user, fmt.Sprintf(`{"product_id":%d,"quantity":1}`, p.ID), nil).Code)
	rec := v.do(http.MethodPost, "/orders/checkout", user, `{"shipping_address":"addr"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	out := decode[usecase.CheckoutOutput](t, rec)

	for name, rec := range map[string]*httptest.ResponseRecorder{
		"bad signature":  v.webhook("evt_1", "pi_1", "forged"),
		"no signature":   v.webhook("evt_1", "pi_1", ""),
		"unknown intent": v.webhook("evt_2", "pi_404", goodSig),
	} {
		assert.Equal(t, http.StatusOK, rec.Code, name)
		assert.JSONEq(t, `{"received":true}`, rec.Body.String(), name)
	}

	o, err := v.store.Orders().FindByID(context.Background(), out.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, o.Status)
}

func TestWebhookStorageFailureAsksForRedelivery(t *testing.T) {
	v := newEnv(t, brokenOrders{})

	rec := v.webhook("evt_1", "pi_1", goodSig)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"db error"}`, rec.Body.String())
}

func TestWebhookRejectsOversizedPayload(t *testing.T) {
	v := newEnv(t, nil)
	p := v.product(t, 1000, 5)
	user := token(t, 1, "USER")

	require.Equal(t, http.StatusOK, v.do(http.MethodPost, "/cart/items", user, fmt.Sprintf(`{"product_id":%d,"quantity":1}`, p.ID), nil).Code)
	rec := v.do(http.MethodPost, "/orders/checkout", user, `{"shipping_address":"addr"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	out := decode[usecase.CheckoutOutput](t, rec)

	body := fmt.Sprintf(`{"id":"evt_1","type":%q,"intent":"pi_1","pad":%q}`,
		payment.EventPaymentSucceeded, strings.Repeat("x", 70000))
	rec = v.do(http.MethodPost, "/orders/webhook", "", body, map[string]string{"Stripe-Signature": goodSig})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"error":"payload too large"}`, rec.Body.String())

	o, err := v.store.Orders().FindByID(context.Background(), out.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, o.Status)

	//上限内なら同じイベントが通る
	rec = v.webhook("evt_1", "pi_1", goodSig)
	assert.Equal(t, http.StatusOK, rec.Code)
	o, err = v.store.Orders().FindByID(context.Background(), out.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, o.Status)
}

func TestCheckoutErrors(t *testing.T) {
	v := newEnv(t, nil)
	p := v.product(t, 1000, 2)
	user := token(t, 3, "USER")

	rec := v.do(http.MethodPost, "/orders/checkout", user, `{"shipping_address":"addr"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusOK, v.do(http.MethodPost, "/cart/items", user, fmt.Sprintf(`{"product_id":%d,"quantity":2}`, p.ID), nil).Code)

	rec = v.do(http.MethodPost, "/orders/checkout", user, `{"shipping_address":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	v.gw.fail = true
	rec = v.do(http.MethodPost, "/orders/checkout", user, `{"shipping_address":"addr"}`, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = v.do(http.MethodPost, "/cart/items", user, fmt.Sprintf(`{"product_id":%d,"quantity":1}`, p.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthBoundaries(t *testing.T) {
	v := newEnv(t, nil)

	assert.Equal(t, http.StatusUnauthorized, v.do(http.MethodGet, "/cart", "", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, v.do(http.MethodPost, "/orders/checkout", "", `{}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, v.do(http.MethodGet, "/orders/abc", token(t, 1, "USER"), "", nil).Code)

	assert.Equal(t, http.StatusForbidden, v.do(http.MethodGet, "/admin/orders/orphans", token(t, 1, "USER"), "", nil).Code)

	rec := v.do(http.MethodGet, "/admin/orders/orphans?older_than=1m", token(t, 2, "ADMIN"), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = v.do(http.MethodGet, "/admin/orders/orphans?older_than=soon", token(t, 2, "ADMIN"), "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = v.do(http.MethodGet, "/admin/audit-logs?action=ORDER_PAID", token(t, 2, "ADMIN"), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

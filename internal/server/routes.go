package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rs-labo46/ec-checkout/internal/handler"
	"github.com/rs-labo46/ec-checkout/internal/metrics"
)

type Handlers struct {
	Cart       *handler.CartHandler
	Order      *handler.OrderHandler
	Webhook    *handler.WebhookHandler
	AdminOrder *handler.AdminOrderHandler
}

func RegisterRoutes(e *echo.Echo, auth echo.MiddlewareFunc, h Handlers, m *metrics.Metrics) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	//webhookは/orders配下だがJWTの外
	h.Webhook.RegisterRoutes(e)
	h.Cart.RegisterRoutes(e, auth)
	h.Order.RegisterRoutes(e, auth)
	h.AdminOrder.RegisterRoutes(e, auth)
}

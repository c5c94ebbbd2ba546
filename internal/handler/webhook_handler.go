package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rs-labo46/ec-checkout/internal/logging"
	"github.com/rs-labo46/ec-checkout/internal/usecase"
)

// Stripeのイベント本文は64KB以内
const maxWebhookBody = 65536

type WebhookHandler struct {
	uc *usecase.WebhookUsecase
}

func NewWebhookHandler(uc *usecase.WebhookUsecase) *WebhookHandler {
	return &WebhookHandler{uc: uc}
}

type WebhookResponse struct {
	Received bool `json:"received"`
}

// JWTは付かない。署名はStripe-Signatureで検証する
func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/orders/webhook", h.receive)
}

func (h *WebhookHandler) receive(c echo.Context) error {
	//署名は生のbodyに対して計算されるのでBindしない
	//上限を超えたら切り詰めずに413
	body := http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody)
	payload, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logging.FromContext(c.Request().Context()).Error("webhook payload too large",
				zap.Int64("limit", tooLarge.Limit))
			return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "payload too large"})
		}
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	if _, err := h.uc.Handle(c.Request().Context(), payload, c.Request().Header.Get("Stripe-Signature")); err != nil {
		//500を返してゲートウェイに再送させる
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, WebhookResponse{Received: true})
}

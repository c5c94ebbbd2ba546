package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rs-labo46/ec-checkout/internal/logging"
	"github.com/rs-labo46/ec-checkout/internal/middleware"
	"github.com/rs-labo46/ec-checkout/internal/usecase"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		if he.Status >= http.StatusInternalServerError {
			logging.FromContext(c.Request().Context()).Error("request failed", zap.Error(err))
		}
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	//500
	logging.FromContext(c.Request().Context()).Error("unexpected error", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	v := c.Get(middleware.CtxUserIDKey)
	if v == nil {
		return 0, false
	}

	id, ok := v.(int64)
	if !ok {
		return 0, false
	}

	return id, true
}

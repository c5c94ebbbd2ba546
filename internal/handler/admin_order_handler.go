package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rs-labo46/ec-checkout/internal/middleware"
	"github.com/rs-labo46/ec-checkout/internal/usecase"
	"github.com/rs-labo46/ec-checkout/internal/validator"
)

type AdminOrderHandler struct {
	uc *usecase.AdminOrderUsecase
}

func NewAdminOrderHandler(uc *usecase.AdminOrderUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{uc: uc}
}

func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, auth echo.MiddlewareFunc) {
	admin := e.Group("/admin", auth, middleware.AdminRoleGuard())

	admin.GET("/audit-logs", h.auditLogs)
	admin.GET("/orders/orphans", h.orphans)
}

func (h *AdminOrderHandler) auditLogs(c echo.Context) error {
	limit, err := validator.IntOr(c.QueryParam("limit"), 50)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
	}
	offset, err := validator.IntOr(c.QueryParam("offset"), 0)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid offset"})
	}

	var orderID int64
	if v := c.QueryParam("order_id"); v != "" {
		orderID, err = validator.PositiveID(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid order_id"})
		}
	}

	out, err := h.uc.ListAuditLogs(c.Request().Context(), usecase.ListAuditLogsInput{
		Action:     c.QueryParam("action"),
		ResourceID: orderID,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) orphans(c echo.Context) error {
	olderThan, err := validator.DurationOr(c.QueryParam("older_than"), 15*time.Minute)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid older_than"})
	}
	limit, err := validator.IntOr(c.QueryParam("limit"), 50)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
	}

	out, err := h.uc.ListOrphans(c.Request().Context(), usecase.ListOrphansInput{
		OlderThan: olderThan,
		Limit:     limit,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/rs-labo46/ec-checkout/internal/config"
	"github.com/rs-labo46/ec-checkout/internal/metrics"
	"github.com/rs-labo46/ec-checkout/internal/middleware"
)

// New はルート登録済みのechoを返す。
func New(cfg config.Config, logger *zap.Logger, m *metrics.Metrics, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.RequestObservability(logger, m))

	RegisterRoutes(e, middleware.AuthJWT(cfg), h, m)
	return e
}

// Start はctxが終わるまでサーバーを動かし、終わったら処理中のリクエストを待って止める。
func Start(ctx context.Context, e *echo.Echo, addr string, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("http server shutting down")
	return e.Shutdown(shutdownCtx)
}

package middleware

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rs-labo46/ec-checkout/internal/logging"
	"github.com/rs-labo46/ec-checkout/internal/metrics"
)

// RequestObservability は1リクエストごとに
// X-Request-ID の付与、request_id付きloggerのcontextへの注入、アクセスログとHTTPメトリクスを行う。
func RequestObservability(base *zap.Logger, m *metrics.Metrics) echo.MiddlewareFunc {
	if base == nil {
		base = zap.NewNop()
	}
	prop := otel.GetTextMapPropagator()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := prop.Extract(req.Context(), propagation.HeaderCarrier(req.Header))

			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, rid)

			fields := []zap.Field{zap.String("request_id", rid)}
			if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
				fields = append(fields,
					zap.String("trace_id", sc.TraceID().String()),
					zap.String("span_id", sc.SpanID().String()),
				)
			}
			reqLogger := base.With(fields...)
			c.SetRequest(req.WithContext(logging.ContextWithLogger(ctx, reqLogger)))

			start := time.Now()
			if err := next(c); err != nil {
				//ステータスを確定させるため先にエラーハンドラを通す
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unknown"
			}
			status := c.Response().Status
			elapsed := time.Since(start)

			m.ObserveHTTP(req.Method, route, strconv.Itoa(status), elapsed.Seconds())
			reqLogger.Info("http_access",
				zap.String("method", req.Method),
				zap.String("route", route),
				zap.String("path", req.URL.Path),
				zap.Int("status", status),
				zap.Int64("latency_ms", elapsed.Milliseconds()),
			)
			return nil
		}
	}
}

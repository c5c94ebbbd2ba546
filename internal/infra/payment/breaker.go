package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/rs-labo46/ec-checkout/internal/domain/payment"
)

type BreakerSettings struct {
	Timeout             time.Duration // 1回の呼び出しの上限
	ConsecutiveFailures uint32        // これだけ続けて失敗したら開く
	OpenFor             time.Duration // 開いている時間
}

func DefaultBreakerSettings(timeout time.Duration) BreakerSettings {
	return BreakerSettings{
		Timeout:             timeout,
		ConsecutiveFailures: 5,
		OpenFor:             30 * time.Second,
	}
}

// BreakerGateway は決済作成にタイムアウトとサーキットブレーカーをかける。
// 失敗は全部 payment.ErrUpstream で包む。
type BreakerGateway struct {
	next    payment.Gateway
	cb      *gobreaker.CircuitBreaker[payment.Intent]
	timeout time.Duration
}

func NewBreakerGateway(next payment.Gateway, s BreakerSettings, logger *zap.Logger) *BreakerGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker[payment.Intent](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Timeout:     s.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &BreakerGateway{next: next, cb: cb, timeout: s.Timeout}
}

func (g *BreakerGateway) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (payment.Intent, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	intent, err := g.cb.Execute(func() (payment.Intent, error) {
		return g.next.CreateIntent(ctx, amount, currency, metadata)
	})
	if err != nil {
		return payment.Intent{}, fmt.Errorf("%w: %w", payment.ErrUpstream, err)
	}
	return intent, nil
}

// 署名検証はローカル計算なのでブレーカーは通さない
func (g *BreakerGateway) ParseWebhook(payload []byte, signature string) (payment.Event, error) {
	return g.next.ParseWebhook(payload, signature)
}

func (g *BreakerGateway) State() gobreaker.State {
	return g.cb.State()
}

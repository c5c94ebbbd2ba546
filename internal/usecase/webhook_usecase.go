package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rs-labo46/ec-checkout/internal/domain/event"
	"github.com/rs-labo46/ec-checkout/internal/domain/model"
	"github.com/rs-labo46/ec-checkout/internal/domain/payment"
	"github.com/rs-labo46/ec-checkout/internal/logging"
	"github.com/rs-labo46/ec-checkout/internal/metrics"
	repo "github.com/rs-labo46/ec-checkout/internal/repository"
)

// EventDeduper は処理済みイベントIDの高速チェック。
// 判定の正はDB側の条件付きUPDATEなので、ここが壊れていても結果は変わらない。
type EventDeduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Remember(ctx context.Context, eventID string) error
}

// EventPublisher はコミット後の通知先。
type EventPublisher interface {
	Publish(ctx context.Context, events ...event.OrderEvent) error
}

// webhookの処理結果（ログ・メトリクス・テスト用）
type WebhookOutcome string

const (
	WebhookInvalidSignature WebhookOutcome = "invalid_signature"
	WebhookIgnored          WebhookOutcome = "ignored"
	WebhookDuplicate        WebhookOutcome = "duplicate"
	WebhookUnknownIntent    WebhookOutcome = "unknown_intent"
	WebhookAlreadyPaid      WebhookOutcome = "already_paid"
	WebhookLostRace         WebhookOutcome = "lost_race"
	WebhookPaid             WebhookOutcome = "paid"
)

type WebhookResult struct {
	Outcome    WebhookOutcome
	OrderID    int64
	Shortfalls []Shortfall
}

// 決済は確定したが減らせなかった明細
type Shortfall struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type WebhookUsecase struct {
	tx        repo.TransactionManager
	orders    repo.OrderRepository
	gateway   payment.Gateway
	deduper   EventDeduper
	publisher EventPublisher
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// deduper / publisher は nil なら何もしない実装を使う。
func NewWebhookUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	gateway payment.Gateway,
	deduper EventDeduper,
	publisher EventPublisher,
	m *metrics.Metrics,
) *WebhookUsecase {
	if deduper == nil {
		deduper = nopDeduper{}
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &WebhookUsecase{
		tx:        tx,
		orders:    orders,
		gateway:   gateway,
		deduper:   deduper,
		publisher: publisher,
		metrics:   m,
		tracer:    otel.Tracer("ec-checkout/usecase"),
	}
}

// Handle は決済ゲートウェイからの通知を反映する。
// 何度届いても結果は同じ。返すエラーはDBなど基盤の失敗だけで、その時は再送してもらう。
func (u *WebhookUsecase) Handle(ctx context.Context, payload []byte, signature string) (res WebhookResult, err error) {
	ctx, span := u.tracer.Start(ctx, "webhook.reconcile")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			u.metrics.WebhookOutcome("error")
		} else {
			span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
			u.metrics.WebhookOutcome(string(res.Outcome))
		}
		span.End()
	}()

	log := logging.FromContext(ctx)

	ev, err := u.gateway.ParseWebhook(payload, signature)
	if err != nil {
		//署名NGは受け取ったことにして捨てる
		log.Warn("webhook signature verification failed", zap.Error(err))
		return WebhookResult{Outcome: WebhookInvalidSignature}, nil
	}

	log = log.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))
	span.SetAttributes(attribute.String("event_id", ev.ID), attribute.String("event_type", ev.Type))

	if ev.Type != payment.EventPaymentSucceeded || ev.PaymentIntentID == "" {
		log.Debug("webhook event ignored")
		return WebhookResult{Outcome: WebhookIgnored}, nil
	}
	log = log.With(zap.String("payment_intent_id", ev.PaymentIntentID))

	if ev.ID != "" {
		seen, err := u.deduper.Seen(ctx, ev.ID)
		if err != nil {
			log.Warn("webhook dedup lookup failed", zap.Error(err))
		} else if seen {
			log.Info("webhook event already processed")
			return WebhookResult{Outcome: WebhookDuplicate}, nil
		}
	}

	order, err := u.orders.FindByPaymentIntentID(ctx, ev.PaymentIntentID)
	if errors.Is(err, repo.ErrNotFound) {
		//checkoutで紐付けに失敗した注文。運用で拾う
		log.Warn("no order for payment intent")
		return WebhookResult{Outcome: WebhookUnknownIntent}, nil
	}
	if err != nil {
		return WebhookResult{}, dbError(err)
	}
	log = log.With(zap.Int64("order_id", order.ID))
	span.SetAttributes(attribute.Int64("order_id", order.ID))

	if order.Status == model.OrderStatusPaid {
		u.remember(ctx, log, ev.ID)
		return WebhookResult{Outcome: WebhookAlreadyPaid, OrderID: order.ID}, nil
	}

	var (
		won        bool
		shortfalls []Shortfall
	)
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		won, shortfalls = false, nil

		ok, err := r.Orders().MarkPaidIfPending(ctx, order.ID)
		if err != nil {
			return dbError(err)
		}
		if !ok {
			return nil
		}
		won = true

		items, err := r.OrderItems().ListByOrderID(ctx, order.ID)
		if err != nil {
			return dbError(err)
		}

		ledger := NewStockLedger(r.Inventory())
		for _, it := range items {
			err := ledger.DecrementForOrder(ctx, order.ID, it.ProductID, it.Quantity)
			if errors.Is(err, ErrInsufficientStock) {
				//PAIDは戻さない。記録して次の明細へ
				sf := Shortfall{ProductID: it.ProductID, Quantity: it.Quantity}
				if err := writeAudit(ctx, r.AuditLogs(), model.AuditActionStockShortfall, order.ID, map[string]any{
					"order_id":          order.ID,
					"product_id":        sf.ProductID,
					"quantity":          sf.Quantity,
					"payment_intent_id": ev.PaymentIntentID,
				}); err != nil {
					return err
				}
				shortfalls = append(shortfalls, sf)
				continue
			}
			if err != nil {
				return err
			}
		}

		cart, err := r.Carts().FindByUserID(ctx, order.UserID)
		switch {
		case err == nil:
			if err := r.Carts().Clear(ctx, cart.ID); err != nil {
				return dbError(err)
			}
		case !errors.Is(err, repo.ErrNotFound):
			return dbError(err)
		}

		return writeAudit(ctx, r.AuditLogs(), model.AuditActionOrderPaid, order.ID, map[string]any{
			"order_id":          order.ID,
			"total":             order.TotalPrice,
			"payment_intent_id": ev.PaymentIntentID,
			"shortfall_count":   len(shortfalls),
		})
	})
	if err != nil {
		log.Error("webhook reconciliation failed", zap.Error(err))
		return WebhookResult{}, err
	}

	if !won {
		u.remember(ctx, log, ev.ID)
		return WebhookResult{Outcome: WebhookLostRace, OrderID: order.ID}, nil
	}

	now := time.Now()
	events := []event.OrderEvent{{
		Type:            event.TypeOrderPaid,
		OrderID:         order.ID,
		UserID:          order.UserID,
		PaymentIntentID: ev.PaymentIntentID,
		Total:           order.TotalPrice,
		OccurredAt:      now,
	}}
	for _, sf := range shortfalls {
		log.Error("stock shortfall on paid order",
			zap.Int64("product_id", sf.ProductID), zap.Int64("quantity", sf.Quantity))
		u.metrics.Shortfall()
		events = append(events, event.OrderEvent{
			Type:            event.TypeStockShortfall,
			OrderID:         order.ID,
			UserID:          order.UserID,
			PaymentIntentID: ev.PaymentIntentID,
			ProductID:       sf.ProductID,
			Quantity:        sf.Quantity,
			OccurredAt:      now,
		})
	}
	log.Info("order paid", zap.Int("shortfalls", len(shortfalls)))

	//通知は失敗してもDBの状態はもう確定している
	if err := u.publisher.Publish(ctx, events...); err != nil {
		log.Warn("failed to publish order events", zap.Error(err))
	}
	u.remember(ctx, log, ev.ID)

	return WebhookResult{Outcome: WebhookPaid, OrderID: order.ID, Shortfalls: shortfalls}, nil
}

func (u *WebhookUsecase) remember(ctx context.Context, log *zap.Logger, eventID string) {
	if eventID == "" {
		return
	}
	if err := u.deduper.Remember(ctx, eventID); err != nil {
		log.Warn("webhook dedup remember failed", zap.Error(err))
	}
}

func writeAudit(ctx context.Context, logs repo.AuditLogRepository, action model.AuditAction, orderID int64, detail map[string]any) error {
	b, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	if err := logs.Create(ctx, model.AuditLog{
		Action:       action,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   orderID,
		DetailJSON:   string(b),
		CreatedAt:    time.Now(),
	}); err != nil {
		return dbError(err)
	}
	return nil
}

type nopDeduper struct{}

func (nopDeduper) Seen(context.Context, string) (bool, error) { return false, nil }
func (nopDeduper) Remember(context.Context, string) error     { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ...event.OrderEvent) error { return nil }

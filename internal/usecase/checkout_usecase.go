package usecase

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rs-labo46/ec-checkout/internal/domain/model"
	"github.com/rs-labo46/ec-checkout/internal/domain/payment"
	"github.com/rs-labo46/ec-checkout/internal/logging"
	"github.com/rs-labo46/ec-checkout/internal/metrics"
	repo "github.com/rs-labo46/ec-checkout/internal/repository"
)

const maxShippingAddressLen = 500

type CheckoutUsecase struct {
	tx        repo.TransactionManager
	carts     repo.CartRepository
	cartItems repo.CartItemRepository
	products  repo.ProductRepository
	orders    repo.OrderRepository
	gateway   payment.Gateway
	currency  string
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// DI
func NewCheckoutUsecase(
	tx repo.TransactionManager,
	carts repo.CartRepository,
	cartItems repo.CartItemRepository,
	products repo.ProductRepository,
	orders repo.OrderRepository,
	gateway payment.Gateway,
	currency string,
	m *metrics.Metrics,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		tx:        tx,
		carts:     carts,
		cartItems: cartItems,
		products:  products,
		orders:    orders,
		gateway:   gateway,
		currency:  currency,
		metrics:   m,
		tracer:    otel.Tracer("ec-checkout/usecase"),
	}
}

type CheckoutInput struct {
	ShippingAddress string
}

type CheckoutOutput struct {
	OrderID      int64  `json:"order_id"`
	ClientSecret string `json:"client_secret"`
	Total        int64  `json:"total"`
}

// Checkout はカートからPENDING注文を作り、決済用のclient_secretを返す。
// 在庫はここでは減らさない（決済確定のwebhookで減らす）。カートも残す。
func (u *CheckoutUsecase) Checkout(ctx context.Context, userID int64, in CheckoutInput) (out CheckoutOutput, err error) {
	ctx, span := u.tracer.Start(ctx, "checkout", trace.WithAttributes(attribute.Int64("user_id", userID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if userID <= 0 {
		return CheckoutOutput{}, unauthorized()
	}
	address := strings.TrimSpace(in.ShippingAddress)
	if address == "" || utf8.RuneCountInString(address) > maxShippingAddressLen {
		return CheckoutOutput{}, invalidArgument("invalid shipping_address")
	}

	log := logging.FromContext(ctx).With(zap.Int64("user_id", userID))

	//カートの中身を確認
	cart, err := u.carts.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		u.metrics.CheckoutOutcome("empty_cart")
		return CheckoutOutput{}, newKindError(ErrEmptyCart, "cart empty")
	}
	if err != nil {
		return CheckoutOutput{}, dbError(err)
	}
	cartItems, err := u.cartItems.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CheckoutOutput{}, dbError(err)
	}
	if len(cartItems) == 0 {
		u.metrics.CheckoutOutcome("empty_cart")
		return CheckoutOutput{}, newKindError(ErrEmptyCart, "cart empty")
	}

	//今の価格でスナップショットを作る（在庫は読むだけで確保しない）
	orderItems := make([]model.OrderItem, 0, len(cartItems))
	var total int64 = 0
	for _, ci := range cartItems {
		p, err := u.products.FindByID(ctx, ci.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return CheckoutOutput{}, notFound()
		}
		if err != nil {
			return CheckoutOutput{}, dbError(err)
		}
		if !p.IsActive() {
			return CheckoutOutput{}, notFound()
		}
		if ci.Quantity > p.Stock {
			u.metrics.CheckoutOutcome("insufficient_stock")
			return CheckoutOutput{}, insufficientStock("out of stock")
		}

		orderItems = append(orderItems, model.OrderItem{
			ProductID:           p.ID,
			ProductNameSnapshot: p.Name,
			UnitPriceSnapshot:   p.Price,
			Quantity:            ci.Quantity,
		})
		total += p.Price * ci.Quantity
	}

	// 注文と明細は1トランザクション
	now := time.Now()
	var orderID int64
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		id, err := r.Orders().Create(ctx, model.Order{
			UserID:          userID,
			ShippingAddress: address,
			Status:          model.OrderStatusPending,
			TotalPrice:      total,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return dbError(err)
		}
		if err := r.OrderItems().CreateBulk(ctx, id, orderItems); err != nil {
			return dbError(err)
		}
		orderID = id
		return nil
	})
	if err != nil {
		return CheckoutOutput{}, err
	}
	span.SetAttributes(attribute.Int64("order_id", orderID), attribute.Int64("total", total))
	log = log.With(zap.Int64("order_id", orderID))

	// 決済作成はDBトランザクションの外（外部呼び出しでロックを持たない）
	intent, err := u.gateway.CreateIntent(ctx, total, u.currency, map[string]string{
		"order_id": strconv.FormatInt(orderID, 10),
	})
	if err != nil {
		//注文はPENDINGのまま残る（決済IDなし）
		log.Warn("payment intent creation failed; order left without payment intent", zap.Error(err))
		u.metrics.OrphanOrder()
		u.metrics.CheckoutOutcome("gateway_error")
		return CheckoutOutput{}, &HTTPError{Status: http.StatusBadGateway, Message: "payment gateway error", Err: errors.Join(ErrUpstreamGateway, err)}
	}

	if err := u.orders.SetPaymentIntentID(ctx, orderID, intent.ID); err != nil {
		//決済はあるが注文に紐付かない。webhookは注文を見つけられない
		log.Error("failed to link payment intent to order",
			zap.String("payment_intent_id", intent.ID), zap.Error(err))
		u.metrics.OrphanOrder()
		u.metrics.CheckoutOutcome("link_error")
		return CheckoutOutput{}, dbError(err)
	}

	log.Info("checkout created", zap.String("payment_intent_id", intent.ID), zap.Int64("total", total))
	u.metrics.CheckoutOutcome("ok")

	return CheckoutOutput{
		OrderID:      orderID,
		ClientSecret: intent.ClientSecret,
		Total:        total,
	}, nil
}

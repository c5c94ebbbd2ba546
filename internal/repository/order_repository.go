package repository

import (
	"context"
	"time"

	"github.com/rs-labo46/ec-checkout/internal/domain/model"
)

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (int64, error)

	// checkout後に別更新で紐付ける
	SetPaymentIntentID(ctx context.Context, orderID int64, paymentIntentID string) error
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (model.Order, error)

	// PENDINGのときだけPAIDにする。勝った呼び出しだけ true。
	MarkPaidIfPending(ctx context.Context, orderID int64) (bool, error)

	// 決済IDが付かないまま残ったPENDING注文（運用確認用）
	ListPendingWithoutIntent(ctx context.Context, createdBefore time.Time, limit int) ([]model.Order, error)
}

package event

import "time"

type Type string

const (
	TypeOrderPaid      Type = "order.paid"
	TypeStockShortfall Type = "stock.shortfall"
)

// OrderEvent は決済確定後に外へ流す通知。
// ProductID / Quantity は stock.shortfall のときだけ入る。
type OrderEvent struct {
	Type            Type      `json:"type"`
	OrderID         int64     `json:"order_id"`
	UserID          int64     `json:"user_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	Total           int64     `json:"total,omitempty"`
	ProductID       int64     `json:"product_id,omitempty"`
	Quantity        int64     `json:"quantity,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

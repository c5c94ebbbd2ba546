package model

import "time"

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusPaid    OrderStatus = "PAID"
)

// 作成後に変わるのは status と payment_intent_id だけ。total は再計算しない。
type Order struct {
	ID              int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          int64       `gorm:"not null;index" json:"user_id"`
	ShippingAddress string      `gorm:"type:text;not null" json:"shipping_address"`
	Status          OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	TotalPrice      int64       `gorm:"not null" json:"total_price"`
	PaymentIntentID *string     `gorm:"type:varchar(255);uniqueIndex" json:"payment_intent_id,omitempty"`
	CreatedAt       time.Time   `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

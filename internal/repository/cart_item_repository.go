package repository

import (
	"context"
	"errors"

	"github.com/rs-labo46/ec-checkout/internal/domain/model"
)

// 加算後の数量が上限を超える
var ErrQuantityExceeded = errors.New("quantity exceeded")

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	// 同一商品はプラス。加算後が maxQty を超えるなら ErrQuantityExceeded。
	AddQuantity(ctx context.Context, cartID int64, productID int64, addQty int64, maxQty int64) error
	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	// ユーザーのカートに属する明細だけを返す。無ければ ErrNotFound。
	FindOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (model.CartItem, error)
}

package repository

import (
	"context"
	"errors"

	"github.com/rs-labo46/ec-checkout/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 商品カタログ（外部）から必要な分だけを約束。
// FindByID は DELETED の商品も返す（注文履歴から参照するため）。
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
	Create(ctx context.Context, p model.Product) (model.Product, error)
	//カタログ側の変更を反映する（名前・価格・在庫・状態）
	Update(ctx context.Context, p model.Product) error
}

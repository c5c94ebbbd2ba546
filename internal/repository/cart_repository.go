package repository

import (
	"context"

	"github.com/rs-labo46/ec-checkout/internal/domain/model"
)

type CartRepository interface {
	// 無ければ作る（user_idのunique制約で1つに収束させる）
	GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error)
	FindByUserID(ctx context.Context, userID int64) (model.Cart, error)
	// 明細を全削除（何度呼んでもよい）
	Clear(ctx context.Context, cartID int64) error
}

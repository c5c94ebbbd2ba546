package repository

import (
	"context"

	"github.com/rs-labo46/ec-checkout/internal/domain/model"
)

type InventoryRepository interface {
	// 在庫が足りるときだけ減算（条件付きUPDATE）
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 調整履歴作成
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}

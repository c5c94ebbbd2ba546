package usecase

import (
	"context"
	"time"

	"github.com/rs-labo46/ec-checkout/internal/domain/model"
	repo "github.com/rs-labo46/ec-checkout/internal/repository"
)

// StockLedger は在庫の減算だけを担当する。
// 減算は条件付きUPDATEなので、同時に呼ばれても在庫はマイナスにならない。
type StockLedger struct {
	inventory repo.InventoryRepository
}

func NewStockLedger(inventory repo.InventoryRepository) *StockLedger {
	return &StockLedger{inventory: inventory}
}

func (l *StockLedger) Decrement(ctx context.Context, productID int64, qty int64) error {
	if productID <= 0 || qty <= 0 {
		return invalidArgument("invalid quantity")
	}

	ok, err := l.inventory.DecreaseStockIfEnough(ctx, productID, qty)
	if err != nil {
		return dbError(err)
	}
	if !ok {
		return insufficientStock("out of stock")
	}
	return nil
}

// DecrementForOrder は減算と調整履歴をセットで書く。
// 同じトランザクションの inventory を渡すこと。
func (l *StockLedger) DecrementForOrder(ctx context.Context, orderID int64, productID int64, qty int64) error {
	if err := l.Decrement(ctx, productID, qty); err != nil {
		return err
	}

	if err := l.inventory.CreateAdjustment(ctx, model.InventoryAdjustment{
		ProductID: productID,
		OrderID:   orderID,
		Delta:     -qty,
		Reason:    model.AdjustmentReasonOrderPaid,
		CreatedAt: time.Now(),
	}); err != nil {
		return dbError(err)
	}
	return nil
}

package usecase_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rs-labo46/ec-checkout/internal/domain/model"
	"github.com/rs-labo46/ec-checkout/internal/usecase"
)

func TestStockLedger_ConcurrentDecrements(t *testing.T) {
	cases := []struct {
		stock, qty, attempts int64
	}{
		{stock: 10, qty: 3, attempts: 20},
		{stock: 5, qty: 1, attempts: 12},
		{stock: 2, qty: 3, attempts: 4},
	}

	for _, tc := range cases {
		f := newFixture(t)
		p := f.addProduct(t, "A", 100, tc.stock)
		ledger := usecase.NewStockLedger(f.store.Inventory())

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			ok, fail int64
		)
		for i := int64(0); i < tc.attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := ledger.Decrement(f.ctx, p.ID, tc.qty)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					ok++
					return
				}
				assert.ErrorIs(t, err, usecase.ErrInsufficientStock)
				fail++
			}()
		}
		wg.Wait()

		want := tc.stock / tc.qty
		assert.Equal(t, want, ok)
		assert.Equal(t, tc.attempts-want, fail)
		assert.Equal(t, tc.stock-want*tc.qty, f.stockOf(t, p.ID))
	}
}

func TestStockLedger_InvalidQuantity(t *testing.T) {
	f := newFixture(t)
	p := f.addProduct(t, "A", 100, 5)
	ledger := usecase.NewStockLedger(f.store.Inventory())

	assertKind(t, ledger.Decrement(f.ctx, p.ID, 0), usecase.ErrInvalidArgument)
	assertKind(t, ledger.Decrement(f.ctx, p.ID, -2), usecase.ErrInvalidArgument)
	assert.Equal(t, int64(5), f.stockOf(t, p.ID))
}

func TestStockLedger_MissingProduct(t *testing.T) {
	f := newFixture(t)
	ledger := usecase.NewStockLedger(f.store.Inventory())

	assertKind(t, ledger.Decrement(f.ctx, 12345, 1), usecase.ErrInsufficientStock)
}

func TestStockLedger_DecrementForOrder_WritesAdjustment(t *testing.T) {
	f := newFixture(t)
	p := f.addProduct(t, "A", 100, 5)
	ledger := usecase.NewStockLedger(f.store.Inventory())

	require.NoError(t, ledger.DecrementForOrder(f.ctx, 77, p.ID, 2))
	assertKind(t, ledger.DecrementForOrder(f.ctx, 78, p.ID, 4), usecase.ErrInsufficientStock)

	adjs := f.store.Adjustments()
	require.Len(t, adjs, 1)
	assert.Equal(t, int64(77), adjs[0].OrderID)
	assert.Equal(t, int64(-2), adjs[0].Delta)
	assert.Equal(t, model.AdjustmentReasonOrderPaid, adjs[0].Reason)
	assert.Equal(t, int64(3), f.stockOf(t, p.ID))
}

package memory

import (
	"context"
	"time"

	"github.com/rs-labo46/ec-checkout/internal/domain/model"
	repo "github.com/rs-labo46/ec-checkout/internal/repository"
)

type ProductRepository struct{ sc scope }

func (r *ProductRepository) FindByID(ctx context.Context, id int64) (model.Product, error) {
	defer r.sc.lock()()

	p, ok := r.sc.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *ProductRepository) Create(ctx context.Context, p model.Product) (model.Product, error) {
	defer r.sc.lock()()

	if p.Status == "" {
		p.Status = model.ProductStatusActive
	}
	now := time.Now()
	p.ID = r.sc.s.nextID()
	p.CreatedAt, p.UpdatedAt = now, now
	r.sc.s.products[p.ID] = p
	return p, nil
}

func (r *ProductRepository) Update(ctx context.Context, p model.Product) error {
	defer r.sc.lock()()

	cur, ok := r.sc.s.products[p.ID]
	if !ok {
		return repo.ErrNotFound
	}
	cur.Name = p.Name
	cur.Description = p.Description
	cur.Price = p.Price
	cur.Stock = p.Stock
	cur.Status = p.Status
	cur.UpdatedAt = time.Now()
	r.sc.s.products[p.ID] = cur
	return nil
}

type InventoryRepository struct{ sc scope }

func (r *InventoryRepository) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	defer r.sc.lock()()

	p, ok := r.sc.s.products[productID]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	p.UpdatedAt = time.Now()
	r.sc.s.products[productID] = p
	return true, nil
}

func (r *InventoryRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	defer r.sc.lock()()

	adj.ID = r.sc.s.nextID()
	if adj.CreatedAt.IsZero() {
		adj.CreatedAt = time.Now()
	}
	r.sc.s.adjustments = append(r.sc.s.adjustments, adj)
	return nil
}

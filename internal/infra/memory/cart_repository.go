package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs-labo46/ec-checkout/internal/domain/model"
	repo "github.com/rs-labo46/ec-checkout/internal/repository"
)

type CartRepository struct{ sc scope }

func (r *CartRepository) GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	defer r.sc.lock()()

	if c, ok := r.sc.s.findCart(userID); ok {
		return c, nil
	}
	now := time.Now()
	c := model.Cart{ID: r.sc.s.nextID(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	r.sc.s.carts[c.ID] = c
	return c, nil
}

func (r *CartRepository) FindByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	defer r.sc.lock()()

	if c, ok := r.sc.s.findCart(userID); ok {
		return c, nil
	}
	return model.Cart{}, repo.ErrNotFound
}

func (r *CartRepository) Clear(ctx context.Context, cartID int64) error {
	defer r.sc.lock()()

	for id, it := range r.sc.s.cartItems {
		if it.CartID == cartID {
			delete(r.sc.s.cartItems, id)
		}
	}
	return nil
}

func (s *Store) findCart(userID int64) (model.Cart, bool) {
	for _, c := range s.carts {
		if c.UserID == userID {
			return c, true
		}
	}
	return model.Cart{}, false
}

type CartItemRepository struct{ sc scope }

func (r *CartItemRepository) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	defer r.sc.lock()()

	items := make([]model.CartItem, 0)
	for _, it := range r.sc.s.cartItems {
		if it.CartID == cartID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r *CartItemRepository) AddQuantity(ctx context.Context, cartID int64, productID int64, addQty int64, maxQty int64) error {
	if addQty <= 0 {
		return errors.New("invalid quantity")
	}
	defer r.sc.lock()()

	now := time.Now()
	for id, it := range r.sc.s.cartItems {
		if it.CartID == cartID && it.ProductID == productID {
			if it.Quantity+addQty > maxQty {
				return repo.ErrQuantityExceeded
			}
			it.Quantity += addQty
			it.UpdatedAt = now
			r.sc.s.cartItems[id] = it
			return nil
		}
	}

	if addQty > maxQty {
		return repo.ErrQuantityExceeded
	}
	it := model.CartItem{
		ID:        r.sc.s.nextID(),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  addQty,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.sc.s.cartItems[it.ID] = it
	return nil
}

func (r *CartItemRepository) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	defer r.sc.lock()()

	it, ok := r.sc.s.cartItems[cartItemID]
	if !ok {
		return repo.ErrNotFound
	}
	it.Quantity = qty
	it.UpdatedAt = time.Now()
	r.sc.s.cartItems[cartItemID] = it
	return nil
}

func (r *CartItemRepository) DeleteByID(ctx context.Context, cartItemID int64) error {
	defer r.sc.lock()()

	if _, ok := r.sc.s.cartItems[cartItemID]; !ok {
		return repo.ErrNotFound
	}
	delete(r.sc.s.cartItems, cartItemID)
	return nil
}

func (r *CartItemRepository) FindOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (model.CartItem, error) {
	defer r.sc.lock()()

	it, ok := r.sc.s.cartItems[cartItemID]
	if !ok {
		return model.CartItem{}, repo.ErrNotFound
	}
	c, ok := r.sc.s.carts[it.CartID]
	if !ok || c.UserID != userID {
		return model.CartItem{}, repo.ErrNotFound
	}
	return it, nil
}

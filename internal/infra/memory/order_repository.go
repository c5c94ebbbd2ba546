package memory

import (
	"context"
	"sort"
	"time"

	"github.com/rs-labo46/ec-checkout/internal/domain/model"
	repo "github.com/rs-labo46/ec-checkout/internal/repository"
)

type OrderRepository struct{ sc scope }

func (r *OrderRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	defer r.sc.lock()()

	o, ok := r.sc.s.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (r *OrderRepository) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	defer r.sc.lock()()

	all := make([]model.Order, 0)
	for _, o := range r.sc.s.orders {
		if o.UserID == userID {
			all = append(all, o)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := int64(len(all))
	offset := (page - 1) * limit
	if offset < 0 || offset >= len(all) {
		return []model.Order{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *OrderRepository) Create(ctx context.Context, order model.Order) (int64, error) {
	defer r.sc.lock()()

	order.ID = r.sc.s.nextID()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	order.UpdatedAt = order.CreatedAt
	r.sc.s.orders[order.ID] = order
	return order.ID, nil
}

func (r *OrderRepository) SetPaymentIntentID(ctx context.Context, orderID int64, paymentIntentID string) error {
	defer r.sc.lock()()

	o, ok := r.sc.s.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	for id, other := range r.sc.s.orders {
		if id != orderID && other.PaymentIntentID != nil && *other.PaymentIntentID == paymentIntentID {
			return ErrDuplicate
		}
	}
	pi := paymentIntentID
	o.PaymentIntentID = &pi
	o.UpdatedAt = time.Now()
	r.sc.s.orders[orderID] = o
	return nil
}

func (r *OrderRepository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (model.Order, error) {
	defer r.sc.lock()()

	for _, o := range r.sc.s.orders {
		if o.PaymentIntentID != nil && *o.PaymentIntentID == paymentIntentID {
			return o, nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (r *OrderRepository) MarkPaidIfPending(ctx context.Context, orderID int64) (bool, error) {
	defer r.sc.lock()()

	o, ok := r.sc.s.orders[orderID]
	if !ok || o.Status != model.OrderStatusPending {
		return false, nil
	}
	o.Status = model.OrderStatusPaid
	o.UpdatedAt = time.Now()
	r.sc.s.orders[orderID] = o
	return true, nil
}

func (r *OrderRepository) ListPendingWithoutIntent(ctx context.Context, createdBefore time.Time, limit int) ([]model.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	defer r.sc.lock()()

	out := make([]model.Order, 0)
	for _, o := range r.sc.s.orders {
		if o.Status == model.OrderStatusPending && o.PaymentIntentID == nil && o.CreatedAt.Before(createdBefore) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type OrderItemRepository struct{ sc scope }

func (r *OrderItemRepository) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	defer r.sc.lock()()

	for _, it := range items {
		it.ID = r.sc.s.nextID()
		it.OrderID = orderID
		if it.CreatedAt.IsZero() {
			it.CreatedAt = time.Now()
		}
		r.sc.s.orderItems[it.ID] = it
	}
	return nil
}

func (r *OrderItemRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	defer r.sc.lock()()

	items := make([]model.OrderItem, 0)
	for _, it := range r.sc.s.orderItems {
		if it.OrderID == orderID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

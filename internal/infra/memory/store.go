package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/rs-labo46/ec-checkout/internal/domain/model"
	repo "github.com/rs-labo46/ec-checkout/internal/repository"
)

// unique制約違反の代わり
var ErrDuplicate = errors.New("memory: duplicate key")

// 全テーブルをプロセス内に持つ。ロックは1つだけ。
// テストと DB_DRIVER=memory のローカル実行で使う。
type Store struct {
	mu sync.Mutex

	seq         int64
	products    map[int64]model.Product
	carts       map[int64]model.Cart
	cartItems   map[int64]model.CartItem
	orders      map[int64]model.Order
	orderItems  map[int64]model.OrderItem
	adjustments []model.InventoryAdjustment
	auditLogs   []model.AuditLog
}

func NewStore() *Store {
	return &Store{
		products:   make(map[int64]model.Product),
		carts:      make(map[int64]model.Cart),
		cartItems:  make(map[int64]model.CartItem),
		orders:     make(map[int64]model.Order),
		orderItems: make(map[int64]model.OrderItem),
	}
}

// WithinTx の中ならロックはもう取ってあるので取らない
type scope struct {
	s    *Store
	inTx bool
}

func (sc scope) lock() func() {
	if sc.inTx {
		return func() {}
	}
	sc.s.mu.Lock()
	return sc.s.mu.Unlock
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *Store) Products() repo.ProductRepository     { return &ProductRepository{scope{s: s}} }
func (s *Store) Carts() repo.CartRepository           { return &CartRepository{scope{s: s}} }
func (s *Store) CartItems() repo.CartItemRepository   { return &CartItemRepository{scope{s: s}} }
func (s *Store) Orders() repo.OrderRepository         { return &OrderRepository{scope{s: s}} }
func (s *Store) OrderItems() repo.OrderItemRepository { return &OrderItemRepository{scope{s: s}} }
func (s *Store) Inventory() repo.InventoryRepository  { return &InventoryRepository{scope{s: s}} }
func (s *Store) AuditLogs() repo.AuditLogRepository   { return &AuditLogRepository{scope{s: s}} }

// 在庫調整履歴のコピー
func (s *Store) Adjustments() []model.InventoryAdjustment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.InventoryAdjustment(nil), s.adjustments...)
}

type txRepos struct {
	sc scope
}

func (r txRepos) Orders() repo.OrderRepository         { return &OrderRepository{r.sc} }
func (r txRepos) OrderItems() repo.OrderItemRepository { return &OrderItemRepository{r.sc} }
func (r txRepos) Carts() repo.CartRepository           { return &CartRepository{r.sc} }
func (r txRepos) CartItems() repo.CartItemRepository   { return &CartItemRepository{r.sc} }
func (r txRepos) Inventory() repo.InventoryRepository  { return &InventoryRepository{r.sc} }
func (r txRepos) Products() repo.ProductRepository     { return &ProductRepository{r.sc} }
func (r txRepos) AuditLogs() repo.AuditLogRepository   { return &AuditLogRepository{r.sc} }

// fnがエラーを返したら開始前の状態に戻す
func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(txRepos{sc: scope{s: s, inTx: true}}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	products    map[int64]model.Product
	carts       map[int64]model.Cart
	cartItems   map[int64]model.CartItem
	orders      map[int64]model.Order
	orderItems  map[int64]model.OrderItem
	adjustments []model.InventoryAdjustment
	auditLogs   []model.AuditLog
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		products:    cloneMap(s.products),
		carts:       cloneMap(s.carts),
		cartItems:   cloneMap(s.cartItems),
		orders:      cloneMap(s.orders),
		orderItems:  cloneMap(s.orderItems),
		adjustments: append([]model.InventoryAdjustment(nil), s.adjustments...),
		auditLogs:   append([]model.AuditLog(nil), s.auditLogs...),
	}
}

func (s *Store) restore(snap snapshot) {
	s.products = snap.products
	s.carts = snap.carts
	s.cartItems = snap.cartItems
	s.orders = snap.orders
	s.orderItems = snap.orderItems
	s.adjustments = snap.adjustments
	s.auditLogs = snap.auditLogs
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

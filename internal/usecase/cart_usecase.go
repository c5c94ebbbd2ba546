package usecase

import (
	"context"
	"errors"

	"github.com/rs-labo46/ec-checkout/internal/domain/model"
	repo "github.com/rs-labo46/ec-checkout/internal/repository"
)

// CartUsecase は /cart の業務ロジック。
type CartUsecase struct {
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
	}
}

// price は今の商品価格（注文時にスナップショットする）
type CartItemResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	Available bool   `json:"available"`
}

type CartResponse struct {
	ID    int64              `json:"id"`
	Items []CartItemResponse `json:"items"`
	Total int64              `json:"total"`
}

type AddCartInput struct {
	ProductID int64
	Quantity  int64
}

type UpdateCartItemInput struct {
	Quantity int64
}

// GetCart はカート取得（無ければ作って空を返す）。
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, unauthorized()
	}

	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, dbError(err)
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// AddToCart はカートに追加（同一商品は数量加算）。
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddCartInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, unauthorized()
	}
	if in.ProductID <= 0 {
		return CartResponse{}, invalidArgument("invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, invalidArgument("invalid quantity")
	}

	// 商品チェック（ACTIVEのみ）
	p, err := u.findActiveProduct(ctx, in.ProductID)
	if err != nil {
		return CartResponse{}, err
	}

	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, dbError(err)
	}

	// 既存数量との合計チェックはrepository側で行ロックを取ってやる
	err = u.cartItemRepo.AddQuantity(ctx, cart.ID, p.ID, in.Quantity, p.Stock)
	if errors.Is(err, repo.ErrQuantityExceeded) {
		return CartResponse{}, insufficientStock("stock exceeded")
	}
	if err != nil {
		return CartResponse{}, dbError(err)
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// 数量変更（所有チェック＋在庫チェック）。
func (u *CartUsecase) UpdateCartItem(ctx context.Context, userID int64, cartItemID int64, in UpdateCartItemInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, unauthorized()
	}
	if cartItemID <= 0 {
		return CartResponse{}, invalidArgument("invalid id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, invalidArgument("invalid quantity")
	}

	item, err := u.findOwnedItem(ctx, cartItemID, userID)
	if err != nil {
		return CartResponse{}, err
	}

	//商品の在庫チェック
	p, err := u.findActiveProduct(ctx, item.ProductID)
	if err != nil {
		return CartResponse{}, err
	}
	if in.Quantity > p.Stock {
		return CartResponse{}, insufficientStock("stock exceeded")
	}

	if err := u.cartItemRepo.UpdateQuantity(ctx, cartItemID, in.Quantity); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, notFound()
		}
		return CartResponse{}, dbError(err)
	}

	return u.buildCartResponse(ctx, item.CartID)
}

// 明細削除
func (u *CartUsecase) DeleteCartItem(ctx context.Context, userID int64, cartItemID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, unauthorized()
	}
	if cartItemID <= 0 {
		return CartResponse{}, invalidArgument("invalid id")
	}

	item, err := u.findOwnedItem(ctx, cartItemID, userID)
	if err != nil {
		return CartResponse{}, err
	}

	if err := u.cartItemRepo.DeleteByID(ctx, cartItemID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, notFound()
		}
		return CartResponse{}, dbError(err)
	}

	return u.buildCartResponse(ctx, item.CartID)
}

// ClearCart は明細を全部消す。何度呼んでも同じ結果。
func (u *CartUsecase) ClearCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, unauthorized()
	}

	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, dbError(err)
	}
	if err := u.cartRepo.Clear(ctx, cart.ID); err != nil {
		return CartResponse{}, dbError(err)
	}

	return u.buildCartResponse(ctx, cart.ID)
}

func (u *CartUsecase) findActiveProduct(ctx context.Context, productID int64) (model.Product, error) {
	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, notFound()
	}
	if err != nil {
		return model.Product{}, dbError(err)
	}
	if !p.IsActive() {
		return model.Product{}, notFound()
	}
	return p, nil
}

// 他人の明細は「存在しない扱い」
func (u *CartUsecase) findOwnedItem(ctx context.Context, cartItemID int64, userID int64) (model.CartItem, error) {
	item, err := u.cartItemRepo.FindOwnedByUser(ctx, cartItemID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.CartItem{}, notFound()
	}
	if err != nil {
		return model.CartItem{}, dbError(err)
	}
	return item, nil
}

// cartIDの明細をまとめてCartResponseを作る。
// DELETEDの商品は available=false で返し、合計には入れない。
func (u *CartUsecase) buildCartResponse(ctx context.Context, cartID int64) (CartResponse, error) {
	items, err := u.cartItemRepo.ListByCartID(ctx, cartID)
	if err != nil {
		return CartResponse{}, dbError(err)
	}

	respItems := make([]CartItemResponse, 0, len(items))
	var total int64 = 0

	for _, it := range items {
		p, err := u.productRepo.FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return CartResponse{}, dbError(err)
		}

		respItems = append(respItems, CartItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  it.Quantity,
			Available: p.IsActive(),
		})

		if p.IsActive() {
			total += p.Price * it.Quantity
		}
	}

	return CartResponse{ID: cartID, Items: respItems, Total: total}, nil
}

package usecase

import (
	"context"
	"errors"
	"net/http"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"github.com/shopspring/decimal"
)

// CartUsecase は /cart の業務ロジックです。
// ゲスト（session key）もログインユーザーも同じ操作。
// 明細を変える操作はすべてTxの中で合計の再計算まで行う。
type CartUsecase struct {
	tx repo.TransactionManager
}

// DI
func NewCartUsecase(tx repo.TransactionManager) *CartUsecase {
	return &CartUsecase{tx: tx}
}

// price は追加時点の価格
type CartItemResponse struct {
	ID        int64           `json:"id"`
	BookID    int64           `json:"book_id"`
	Title     string          `json:"title"`
	Slug      string          `json:"slug"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type CartResponse struct {
	ID         int64              `json:"id"`
	Items      []CartItemResponse `json:"items"`
	TotalPrice decimal.Decimal    `json:"total_price"`
	TotalItems int64              `json:"total_items"`
}

type AddCartInput struct {
	BookID   int64
	Quantity int64
}

// カート取得（無ければACTIVEを作って空を返す）。
func (u *CartUsecase) GetCart(ctx context.Context, owner model.CartOwner) (CartResponse, error) {
	if !owner.IsValid() {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "no cart session")
	}

	var out CartResponse
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().GetOrCreateActive(ctx, owner)
		if err != nil {
			return err
		}
		out, err = buildCartResponse(ctx, r, cart)
		return err
	})
	if err != nil {
		return CartResponse{}, toCartHTTPError(err)
	}
	return out, nil
}

// カートに追加。同じ本は数量を加算し、価格は最初の追加時のまま。
func (u *CartUsecase) AddToCart(ctx context.Context, owner model.CartOwner, in AddCartInput) (CartResponse, error) {
	if !owner.IsValid() {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "no cart session")
	}
	if in.BookID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid book_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	var out CartResponse
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		book, err := r.Books().FindByID(ctx, in.BookID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "book not found")
		}
		if err != nil {
			return err
		}
		if !book.IsPublished {
			return NewHTTPError(http.StatusNotFound, "book not found")
		}

		cart, err := r.Carts().GetOrCreateActive(ctx, owner)
		if err != nil {
			return err
		}

		item, err := r.CartItems().FindByCartAndBook(ctx, cart.ID, book.ID)
		switch {
		case err == nil:
			newQty := item.Quantity + in.Quantity
			if newQty > book.StockQuantity {
				return NewHTTPError(http.StatusBadRequest, "stock exceeded")
			}
			if err := r.CartItems().UpdateQuantity(ctx, item.ID, newQty); err != nil {
				return err
			}
		case errors.Is(err, repo.ErrNotFound):
			if in.Quantity > book.StockQuantity {
				return NewHTTPError(http.StatusBadRequest, "stock exceeded")
			}
			if _, err := r.CartItems().Create(ctx, model.CartItem{
				CartID:   cart.ID,
				BookID:   book.ID,
				Quantity: in.Quantity,
				Price:    book.EffectivePrice(),
			}); err != nil {
				return err
			}
		default:
			return err
		}

		cart, err = recomputeCartTotals(ctx, r, cart)
		if err != nil {
			return err
		}
		out, err = buildCartResponse(ctx, r, cart)
		return err
	})
	if err != nil {
		return CartResponse{}, toCartHTTPError(err)
	}
	return out, nil
}

// 数量を上書き。0なら明細を削除する。
func (u *CartUsecase) SetQuantity(ctx context.Context, owner model.CartOwner, bookID int64, qty int64) (CartResponse, error) {
	if !owner.IsValid() {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "no cart session")
	}
	if bookID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid book_id")
	}
	if qty < 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	var out CartResponse
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().LockActive(ctx, owner)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "item not found")
		}
		if err != nil {
			return err
		}

		item, err := r.CartItems().FindByCartAndBook(ctx, cart.ID, bookID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "item not found")
		}
		if err != nil {
			return err
		}

		if qty == 0 {
			if err := r.CartItems().DeleteByID(ctx, item.ID); err != nil {
				return err
			}
		} else {
			book, err := r.Books().FindByID(ctx, bookID)
			if err != nil && !errors.Is(err, repo.ErrNotFound) {
				return err
			}
			if err == nil && qty > book.StockQuantity {
				return NewHTTPError(http.StatusBadRequest, "stock exceeded")
			}
			if err := r.CartItems().UpdateQuantity(ctx, item.ID, qty); err != nil {
				return err
			}
		}

		cart, err = recomputeCartTotals(ctx, r, cart)
		if err != nil {
			return err
		}
		out, err = buildCartResponse(ctx, r, cart)
		return err
	})
	if err != nil {
		return CartResponse{}, toCartHTTPError(err)
	}
	return out, nil
}

// 明細削除
func (u *CartUsecase) RemoveItem(ctx context.Context, owner model.CartOwner, bookID int64) (CartResponse, error) {
	return u.SetQuantity(ctx, owner, bookID, 0)
}

// 明細を全部消す。カートはACTIVEのまま
func (u *CartUsecase) ClearCart(ctx context.Context, owner model.CartOwner) (CartResponse, error) {
	if !owner.IsValid() {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "no cart session")
	}

	var out CartResponse
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().GetOrCreateActive(ctx, owner)
		if err != nil {
			return err
		}
		if err := r.CartItems().DeleteByCartID(ctx, cart.ID); err != nil {
			return err
		}
		cart, err = recomputeCartTotals(ctx, r, cart)
		if err != nil {
			return err
		}
		out, err = buildCartResponse(ctx, r, cart)
		return err
	})
	if err != nil {
		return CartResponse{}, toCartHTTPError(err)
	}
	return out, nil
}

// 明細を空にしてカートを閉じる（注文確定側から呼ぶ）
func (u *CartUsecase) CloseCart(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().LockActive(ctx, model.UserOwner(userID))
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := r.CartItems().DeleteByCartID(ctx, cart.ID); err != nil {
			return err
		}
		if _, err := recomputeCartTotals(ctx, r, cart); err != nil {
			return err
		}
		return r.Carts().Deactivate(ctx, cart.ID)
	})
	if err != nil {
		return toCartHTTPError(err)
	}
	return nil
}

// 明細から合計を出し直して保存する。
// 明細を変えたTxの中で、commit前に必ず呼ぶ。
func recomputeCartTotals(ctx context.Context, r repo.TxRepos, cart model.Cart) (model.Cart, error) {
	items, err := r.CartItems().ListByCartID(ctx, cart.ID)
	if err != nil {
		return model.Cart{}, err
	}

	totalPrice, totalItems := model.CartTotals(items)
	if err := r.Carts().UpdateTotals(ctx, cart.ID, repo.CartTotals{
		TotalPrice: totalPrice,
		TotalItems: totalItems,
	}); err != nil {
		return model.Cart{}, err
	}

	cart.TotalPrice = totalPrice
	cart.TotalItems = totalItems
	cart.Items = items
	return cart, nil
}

// cartの明細をまとめてCartResponseを作る。
func buildCartResponse(ctx context.Context, r repo.TxRepos, cart model.Cart) (CartResponse, error) {
	items := cart.Items
	if items == nil {
		var err error
		items, err = r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return CartResponse{}, err
		}
	}

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.BookID)
	}
	books, err := r.Books().FindByIDs(ctx, ids)
	if err != nil {
		return CartResponse{}, err
	}
	byID := make(map[int64]model.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}

	respItems := make([]CartItemResponse, 0, len(items))
	for _, it := range items {
		b := byID[it.BookID]
		respItems = append(respItems, CartItemResponse{
			ID:        it.ID,
			BookID:    it.BookID,
			Title:     b.Title,
			Slug:      b.Slug,
			Price:     it.Price,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal(),
		})
	}

	return CartResponse{
		ID:         cart.ID,
		Items:      respItems,
		TotalPrice: cart.TotalPrice,
		TotalItems: cart.TotalItems,
	}, nil
}

func toCartHTTPError(err error) error {
	if _, ok := AsHTTPError(err); ok {
		return err
	}
	if errors.Is(err, repo.ErrConflict) {
		return WrapHTTPError(http.StatusConflict, "cart is busy, retry", err)
	}
	return WrapHTTPError(http.StatusInternalServerError, "db error", err)
}

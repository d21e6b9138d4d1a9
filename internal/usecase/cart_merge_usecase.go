package usecase

import (
	"context"
	"errors"
	"fmt"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"go.uber.org/zap"
)

type MergeStatus string

const (
	MergeNoGuestCart    MergeStatus = "no_guest_cart"
	MergeEmptyGuestCart MergeStatus = "empty_guest_cart"
	MergeSameCart       MergeStatus = "same_cart"
	MergeCompleted      MergeStatus = "completed"

	// 統合に失敗。ゲストカートはそのまま残るので次回のログインで再試行できる
	MergeFailed MergeStatus = "failed"
)

// CartID はユーザーカートのID。何もしなかったときは0
type MergeResult struct {
	Status MergeStatus `json:"status"`
	CartID int64       `json:"cart_id,omitempty"`
}

// ロック競合・デッドロック時にTxごとやり直す回数
const mergeMaxAttempts = 3

// ログイン/会員登録のときにゲストカートをユーザーカートへ統合する。
type CartMergeUsecase struct {
	tx  repo.TransactionManager
	log *zap.Logger
}

// DI
func NewCartMergeUsecase(tx repo.TransactionManager, log *zap.Logger) *CartMergeUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartMergeUsecase{tx: tx, log: log}
}

// ゲストカートの明細をユーザーカートに移し、ゲストカートを無効にする。
// 同じ本は数量を足し、価格はユーザー側を残す。
// 2回目以降はゲストカートが無効なので何もしない。
func (u *CartMergeUsecase) MergeGuestCartIntoUser(ctx context.Context, guestSessionKey string, userID int64) (MergeResult, error) {
	if guestSessionKey == "" {
		return MergeResult{Status: MergeNoGuestCart}, nil
	}
	if userID <= 0 {
		return MergeResult{}, errors.New("merge guest cart: invalid user id")
	}

	var lastErr error
	for attempt := 1; attempt <= mergeMaxAttempts; attempt++ {
		res, err := u.mergeOnce(ctx, guestSessionKey, userID)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, repo.ErrConflict) {
			return MergeResult{}, fmt.Errorf("merge guest cart: %w", err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return MergeResult{}, fmt.Errorf("merge guest cart: %w", ctxErr)
		}

		lastErr = err
		u.log.Warn("cart merge conflict",
			zap.Int64("user_id", userID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return MergeResult{}, fmt.Errorf("merge guest cart: %w", lastErr)
}

// ロック順: ゲストカート → ゲスト明細 → ユーザーカート → ユーザー明細
func (u *CartMergeUsecase) mergeOnce(ctx context.Context, guestSessionKey string, userID int64) (MergeResult, error) {
	var res MergeResult

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		guest, err := r.Carts().LockActive(ctx, model.GuestOwner(guestSessionKey))
		if errors.Is(err, repo.ErrNotFound) {
			res = MergeResult{Status: MergeNoGuestCart}
			return nil
		}
		if err != nil {
			return err
		}
		if guest.IsOwnedBy(model.UserOwner(userID)) {
			res = MergeResult{Status: MergeSameCart, CartID: guest.ID}
			return nil
		}

		guestItems, err := r.CartItems().LockByCartID(ctx, guest.ID)
		if err != nil {
			return err
		}
		if len(guestItems) == 0 {
			// ユーザーカートは作らない
			if err := r.Carts().Deactivate(ctx, guest.ID); err != nil {
				return err
			}
			res = MergeResult{Status: MergeEmptyGuestCart}
			return nil
		}

		userCart, err := r.Carts().GetOrCreateActive(ctx, model.UserOwner(userID))
		if err != nil {
			return err
		}
		if userCart.ID == guest.ID {
			res = MergeResult{Status: MergeSameCart, CartID: userCart.ID}
			return nil
		}

		userItems, err := r.CartItems().LockByCartID(ctx, userCart.ID)
		if err != nil {
			return err
		}
		byBook := make(map[int64]model.CartItem, len(userItems))
		for _, it := range userItems {
			byBook[it.BookID] = it
		}

		for _, gi := range guestItems {
			if ui, ok := byBook[gi.BookID]; ok {
				ui.Quantity += gi.Quantity
				if err := r.CartItems().UpdateQuantity(ctx, ui.ID, ui.Quantity); err != nil {
					return err
				}
				byBook[gi.BookID] = ui
				continue
			}

			created, err := r.CartItems().Create(ctx, model.CartItem{
				CartID:   userCart.ID,
				BookID:   gi.BookID,
				Quantity: gi.Quantity,
				Price:    gi.Price,
			})
			if err != nil {
				return err
			}
			byBook[gi.BookID] = created
		}

		if _, err := recomputeCartTotals(ctx, r, userCart); err != nil {
			return err
		}

		// 明細は残したまま無効化
		if err := r.Carts().Deactivate(ctx, guest.ID); err != nil {
			return err
		}

		res = MergeResult{Status: MergeCompleted, CartID: userCart.ID}
		return nil
	})
	if err != nil {
		return MergeResult{}, err
	}

	u.log.Debug("cart merge finished",
		zap.Int64("user_id", userID),
		zap.String("status", string(res.Status)),
		zap.Int64("cart_id", res.CartID),
	)
	return res, nil
}

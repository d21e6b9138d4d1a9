package handler

import (
	"net/http"

	"bookstore/internal/config"
	"bookstore/internal/domain/model"
	"bookstore/internal/middleware"
	"bookstore/internal/repository"
	"bookstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /cartのHTTP。ゲストでもログイン済みでも使える
type CartHandler struct {
	uc *usecase.CartUsecase
}

// DI
func NewCartHandler(uc *usecase.CartUsecase) *CartHandler {
	return &CartHandler{uc: uc}
}

type AddCartRequest struct {
	BookID   int64 `json:"book_id" validate:"required,gt=0"`
	Quantity int64 `json:"quantity" validate:"omitempty,gt=0,lte=1000"`
}

type UpdateCartItemRequest struct {
	Quantity int64 `json:"quantity" validate:"gte=0,lte=1000"`
}

// /cart, /cart/items/{book_id} を登録
func (h *CartHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/cart")
	g.Use(middleware.OptionalAuth(cfg))
	g.Use(middleware.OptionalTokenVersionGuard(userRepo))
	g.Use(middleware.GuestSession(cfg.GuestCartTTL, cfg.CookieSecure))

	g.GET("", h.withOwner(h.getCart))
	g.DELETE("", h.withOwner(h.clearCart))
	g.POST("/items", h.withOwner(h.addToCart))
	g.PATCH("/items/:book_id", h.withOwner(h.patchItem))
	g.DELETE("/items/:book_id", h.withOwner(h.deleteItem))
	g.POST("/close", h.closeCart)
}

type ownerHandler func(c echo.Context, owner model.CartOwner) error

// GuestSession/OptionalAuthが決めたカートの持ち主を渡す
func (h *CartHandler) withOwner(fn ownerHandler) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, ok := middleware.CartOwnerFromContext(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
		}
		return fn(c, owner)
	}
}

// 成功時は常に最新のカート全体を返す
func cartJSON(c echo.Context, out usecase.CartResponse, err error) error {
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) getCart(c echo.Context, owner model.CartOwner) error {
	out, err := h.uc.GetCart(c.Request().Context(), owner)
	return cartJSON(c, out, err)
}

func (h *CartHandler) addToCart(c echo.Context, owner model.CartOwner) error {
	var req AddCartRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	// 数量省略は1冊
	req.Quantity = max(req.Quantity, 1)

	out, err := h.uc.AddToCart(c.Request().Context(), owner, usecase.AddCartInput{BookID: req.BookID, Quantity: req.Quantity})
	return cartJSON(c, out, err)
}

func (h *CartHandler) patchItem(c echo.Context, owner model.CartOwner) error {
	bookID, ok := parseIDParam(c, "book_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, errorJSON("invalid book_id"))
	}
	var req UpdateCartItemRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	out, err := h.uc.SetQuantity(c.Request().Context(), owner, bookID, req.Quantity)
	return cartJSON(c, out, err)
}

func (h *CartHandler) deleteItem(c echo.Context, owner model.CartOwner) error {
	bookID, ok := parseIDParam(c, "book_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, errorJSON("invalid book_id"))
	}

	out, err := h.uc.RemoveItem(c.Request().Context(), owner, bookID)
	return cartJSON(c, out, err)
}

func (h *CartHandler) clearCart(c echo.Context, owner model.CartOwner) error {
	out, err := h.uc.ClearCart(c.Request().Context(), owner)
	return cartJSON(c, out, err)
}

// ログイン済みのカートを空にして閉じる。次の操作で新しいカートができる
func (h *CartHandler) closeCart(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
	}

	if err := h.uc.CloseCart(c.Request().Context(), userID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "cart closed"})
}

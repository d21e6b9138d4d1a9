package handler

import (
	"net/http"
	"time"

	"bookstore/internal/usecase"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

type SubscribeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type SubscriptionHandler struct {
	uc *usecase.SubscriptionUsecase
}

// DI
func NewSubscriptionHandler(uc *usecase.SubscriptionUsecase) *SubscriptionHandler {
	return &SubscriptionHandler{uc: uc}
}

// 登録はIPごとに5分で10回まで
func (h *SubscriptionHandler) RegisterRoutes(e *echo.Echo) {
	limiter := echomw.RateLimiter(echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Every(30 * time.Second),
		Burst:     10,
		ExpiresIn: 5 * time.Minute,
	}))

	e.POST("/subscriptions", h.subscribe, limiter)
	e.GET("/subscriptions/unsubscribe", h.unsubscribe)
}

func (h *SubscriptionHandler) subscribe(c echo.Context) error {
	var req SubscribeRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	out, created, err := h.uc.Subscribe(c.Request().Context(), req.Email)
	if err != nil {
		return writeError(c, err)
	}
	if created {
		return c.JSON(http.StatusCreated, out)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *SubscriptionHandler) unsubscribe(c echo.Context) error {
	if err := h.uc.Unsubscribe(c.Request().Context(), c.QueryParam("t")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "unsubscribed"})
}

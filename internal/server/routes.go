package server

import (
	"net/http"

	"bookstore/internal/config"
	"bookstore/internal/handler"
	"bookstore/internal/middleware"
	"bookstore/internal/repository"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Auth         *handler.AuthHandler
	Cart         *handler.CartHandler
	Book         *handler.BookHandler
	AdminBook    *handler.AdminBookHandler
	AdminUser    *handler.AdminUserHandler
	Review       *handler.ReviewHandler
	Profile      *handler.ProfileHandler
	Subscription *handler.SubscriptionHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository, h Handlers) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	h.Auth.RegisterRoutes(e, cfg, userRepo)
	h.Cart.RegisterRoutes(e, cfg, userRepo)
	h.Book.RegisterRoutes(e)
	h.Subscription.RegisterRoutes(e)

	//JWT必須 + token_version一致
	auth := []echo.MiddlewareFunc{
		middleware.AuthJWT(cfg),
		middleware.TokenVersionGuard(userRepo),
	}
	h.Review.RegisterRoutes(e, auth...)
	h.Profile.RegisterRoutes(e, auth...)

	//さらにADMIN限定
	admin := e.Group("/admin",
		middleware.AuthJWT(cfg),
		middleware.TokenVersionGuard(userRepo),
		middleware.AdminRoleGuard(),
	)
	h.AdminBook.RegisterRoutes(admin)
	h.AdminUser.RegisterRoutes(admin)
}

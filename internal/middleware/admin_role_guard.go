package middleware

import (
	"net/http"
	"slices"

	"bookstore/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// /admin 配下用
func AdminRoleGuard() echo.MiddlewareFunc {
	return RequireRole(model.RoleAdmin)
}

// AuthJWTの後ろに置く。roleが無ければ401、許可外なら403
func RequireRole(allowed ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := model.Role(RoleFromContext(c))
			switch {
			case role == "":
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			case !slices.Contains(allowed, role):
				return c.JSON(http.StatusForbidden, errorJSON("admin only"))
			}
			return next(c)
		}
	}
}

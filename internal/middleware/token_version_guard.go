package middleware

import (
	"net/http"
	"strings"

	"bookstore/internal/repository"

	"github.com/labstack/echo/v4"
)

// JWTのtvとDBのtoken_versionを突き合わせる。強制ログアウト済みなら401
func TokenVersionGuard(users repository.UserRepository) echo.MiddlewareFunc {
	return tokenVersionGuard(users, false)
}

// OptionalAuthの後ろに置く。ゲストはDBを見ずに通す
func OptionalTokenVersionGuard(users repository.UserRepository) echo.MiddlewareFunc {
	return tokenVersionGuard(users, true)
}

func tokenVersionGuard(users repository.UserRepository, allowGuest bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if allowGuest && c.Get(CtxUserIDKey) == nil {
				return next(c)
			}
			if status := checkSession(c, users); status != http.StatusOK {
				return c.JSON(status, errorJSON(strings.ToLower(http.StatusText(status))))
			}
			return next(c)
		}
	}
}

func checkSession(c echo.Context, users repository.UserRepository) int {
	userID, ok := UserIDFromContext(c)
	if !ok {
		return http.StatusUnauthorized
	}
	tv, ok := c.Get(CtxTokenVersionKey).(int)
	if !ok || tv < 0 {
		return http.StatusUnauthorized
	}

	user, err := users.FindByID(c.Request().Context(), userID)
	switch {
	case err != nil, user.TokenVersion != tv:
		return http.StatusUnauthorized
	case !user.IsActive:
		return http.StatusForbidden
	}
	return http.StatusOK
}

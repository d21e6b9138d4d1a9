package middleware

import (
	"errors"
	"net/http"
	"strings"

	"bookstore/internal/authtoken"
	"bookstore/internal/config"

	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey       = "user_id"       // int64
	CtxUserRoleKey     = "user_role"     // string
	CtxTokenVersionKey = "token_version" // int
)

var errNoToken = errors.New("no token")

// Bearerのaccess tokenを必須にする
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	return bearer(cfg.JWTSecret, true)
}

// ゲストも通す。ヘッダがあるのに壊れていれば401
func OptionalAuth(cfg config.Config) echo.MiddlewareFunc {
	return bearer(cfg.JWTSecret, false)
}

func bearer(secret string, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := authenticate(c, secret)
			switch {
			case err == nil:
			case errors.Is(err, errNoToken) && !required:
			default:
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			return next(c)
		}
	}
}

func authenticate(c echo.Context, secret string) error {
	authz := c.Request().Header.Get(echo.HeaderAuthorization)
	if authz == "" {
		return errNoToken
	}

	scheme, raw, ok := strings.Cut(authz, " ")
	raw = strings.TrimSpace(raw)
	if !ok || !strings.EqualFold(scheme, "Bearer") || raw == "" {
		return authtoken.ErrInvalid
	}

	claims, err := authtoken.Parse(secret, raw)
	if err != nil {
		return err
	}
	userID, _ := claims.UserID()

	c.Set(CtxUserIDKey, userID)
	c.Set(CtxUserRoleKey, claims.Role)
	c.Set(CtxTokenVersionKey, claims.TokenVersion)
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

func UserIDFromContext(c echo.Context) (int64, bool) {
	id, ok := c.Get(CtxUserIDKey).(int64)
	return id, ok && id > 0
}

func RoleFromContext(c echo.Context) string {
	role, _ := c.Get(CtxUserRoleKey).(string)
	return role
}

package middleware

import (
	"net/http"
	"time"

	"bookstore/internal/domain/model"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	GuestSessionCookie    = "guest_session"
	CtxGuestSessionKey    = "guest_session_key" // string
	maxGuestSessionKeyLen = 40
)

// 未ログインの利用者にセッションキーを配る。ログイン済みなら何もしない
func GuestSession(ttl time.Duration, secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := UserIDFromContext(c); ok {
				return next(c)
			}

			key := GuestSessionKey(c)
			if key == "" {
				key = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     GuestSessionCookie,
					Value:    key,
					Path:     "/",
					MaxAge:   int(ttl.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			c.Set(CtxGuestSessionKey, key)

			return next(c)
		}
	}
}

// contextかCookieからセッションキーを読む。無ければ空
func GuestSessionKey(c echo.Context) string {
	if key, ok := c.Get(CtxGuestSessionKey).(string); ok && key != "" {
		return key
	}
	ck, err := c.Cookie(GuestSessionCookie)
	if err != nil || ck.Value == "" || len(ck.Value) > maxGuestSessionKeyLen {
		return ""
	}
	return ck.Value
}

// 統合済みのゲストカートにはもう戻らない
func ExpireGuestSession(c echo.Context, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     GuestSessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ログイン中ならユーザー、そうでなければゲストのカート
func CartOwnerFromContext(c echo.Context) (model.CartOwner, bool) {
	if userID, ok := UserIDFromContext(c); ok {
		return model.UserOwner(userID), true
	}
	if key := GuestSessionKey(c); key != "" {
		return model.GuestOwner(key), true
	}
	return model.CartOwner{}, false
}

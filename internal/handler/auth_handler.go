package handler

import (
	"crypto/subtle"
	"net/http"
	"time"

	"bookstore/internal/config"
	"bookstore/internal/middleware"
	"bookstore/internal/repository"
	"bookstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

const (
	refreshCookieName = "refresh"
	csrfCookieName    = "csrf_token"
	csrfHeaderName    = "X-CSRF-Token"
)

type AuthHandler struct {
	uc           *usecase.AuthUsecase
	refreshTTL   time.Duration // refresh/csrf cookie の有効期限
	cookieSecure bool
}

// DIコンストラクタ
func NewAuthHandler(uc *usecase.AuthUsecase, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		uc:           uc,
		refreshTTL:   cfg.RefreshTokenTTL,
		cookieSecure: cfg.CookieSecure,
	}
}

// /auth/register のリクエストボディ。
type registerRequest struct {
	Username        string `json:"username" validate:"required,max=150"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required"`
}

// /auth/login のリクエストボディ。loginはusernameかemail
type loginRequest struct {
	Login    string `json:"login" validate:"required,max=255"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	usecase.AuthLoginResponse
	CartMerge usecase.MergeResult `json:"cart_merge"`
}

func (h *AuthHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/auth")
	g.POST("/register", h.register)
	g.POST("/login", h.login)
	g.POST("/refresh", h.refresh)
	g.POST("/logout", h.logout)
	g.GET("/me", h.me, middleware.AuthJWT(cfg), middleware.TokenVersionGuard(userRepo))
}

func (h *AuthHandler) register(c echo.Context) error {
	var req registerRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	res, err := h.uc.Register(c.Request().Context(), usecase.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	}, middleware.GuestSessionKey(c), c.Request().UserAgent())
	if err != nil {
		return writeAuthError(c, err)
	}

	h.setSessionCookies(c, res.RefreshTokenPlain, res.CsrfTokenPlain)
	h.afterMerge(c, res.Merge)
	return c.JSON(http.StatusCreated, loginResponse{AuthLoginResponse: res.Body, CartMerge: res.Merge})
}

func (h *AuthHandler) login(c echo.Context) error {
	var req loginRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	res, err := h.uc.Login(
		c.Request().Context(),
		req.Login,
		req.Password,
		middleware.GuestSessionKey(c),
		c.Request().UserAgent(),
	)
	if err != nil {
		return writeAuthError(c, err)
	}

	h.setSessionCookies(c, res.RefreshTokenPlain, res.CsrfTokenPlain)
	h.afterMerge(c, res.Merge)
	return c.JSON(http.StatusOK, loginResponse{AuthLoginResponse: res.Body, CartMerge: res.Merge})
}

func (h *AuthHandler) refresh(c echo.Context) error {
	refreshToken, ok := h.readRefreshWithCSRF(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
	}

	res, err := h.uc.Refresh(c.Request().Context(), refreshToken, c.Request().UserAgent())
	if err != nil {
		h.clearSessionCookies(c)
		return writeAuthError(c, err)
	}

	h.setSessionCookies(c, res.RefreshTokenPlain, res.CsrfTokenPlain)
	return c.JSON(http.StatusOK, res.Body)
}

func (h *AuthHandler) logout(c echo.Context) error {
	refreshToken, ok := h.readRefreshWithCSRF(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
	}

	res, err := h.uc.Logout(c.Request().Context(), refreshToken)
	h.clearSessionCookies(c)
	if err != nil {
		return writeAuthError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *AuthHandler) me(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
	}

	out, err := h.uc.Me(c.Request().Context(), userID)
	if err != nil {
		return writeAuthError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ゲストカートを引き継いだらセッションキーは捨てる
func (h *AuthHandler) afterMerge(c echo.Context, res usecase.MergeResult) {
	switch res.Status {
	case usecase.MergeCompleted, usecase.MergeEmptyGuestCart:
		middleware.ExpireGuestSession(c, h.cookieSecure)
	}
}

// refresh cookie と X-CSRF-Token ヘッダ（= csrf cookie）を確認
func (h *AuthHandler) readRefreshWithCSRF(c echo.Context) (string, bool) {
	rc, err := c.Cookie(refreshCookieName)
	if err != nil || rc.Value == "" {
		return "", false
	}
	cc, err := c.Cookie(csrfCookieName)
	if err != nil || cc.Value == "" {
		return "", false
	}
	header := c.Request().Header.Get(csrfHeaderName)
	if subtle.ConstantTimeCompare([]byte(header), []byte(cc.Value)) != 1 {
		return "", false
	}
	return rc.Value, true
}

func (h *AuthHandler) setSessionCookies(c echo.Context, refreshPlain string, csrfPlain string) {
	exp := time.Now().Add(h.refreshTTL)

	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    refreshPlain,
		Path:     "/auth",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	})
	//JSから読めるようにHttpOnlyにしない
	c.SetCookie(&http.Cookie{
		Name:     csrfCookieName,
		Value:    csrfPlain,
		Path:     "/",
		HttpOnly: false,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	})
}

func (h *AuthHandler) clearSessionCookies(c echo.Context) {
	c.SetCookie(&http.Cookie{Name: refreshCookieName, Value: "", Path: "/auth", MaxAge: -1, HttpOnly: true, Secure: h.cookieSecure})
	c.SetCookie(&http.Cookie{Name: csrfCookieName, Value: "", Path: "/", MaxAge: -1, Secure: h.cookieSecure})
}

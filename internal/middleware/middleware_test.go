package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"bookstore/internal/config"
	"bookstore/internal/domain/model"
	"bookstore/internal/middleware"
	"bookstore/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// =====================
// レスポンス確認用
// =====================

type mwErrorResponse struct {
	Error string `json:"error"`
}

type mwOKResponse struct {
	UserID       int64  `json:"user_id"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
	Owner        string `json:"owner"`
}

// =====================
// UserRepository モック
// =====================

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	args := m.Called(ctx, username)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockUserRepository) IncrementTokenVersion(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ repository.UserRepository = (*MockUserRepository)(nil)

// =====================
// helper
// =====================

const testSecret = "test-secret"

func mustMakeJWT(t *testing.T, secret string, sub int64, role string, tv int, signingMethod jwt.SigningMethod) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(sub, 10),
		"role": role,
		"tv":   tv,
		"iat":  1,
		"exp":  9999999999,
	}

	s, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func runRequest(t *testing.T, e *echo.Echo, method string, path string, authHeader string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeMWError(t *testing.T, rec *httptest.ResponseRecorder) mwErrorResponse {
	t.Helper()
	var r mwErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

func decodeMWOK(t *testing.T, rec *httptest.ResponseRecorder) mwOKResponse {
	t.Helper()
	var r mwOKResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

func okHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"ok": "true"})
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

// =====================
// AuthJWT
// =====================

func TestMiddleware_AuthJWT_Unauthorized(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1", "role": "USER", "tv": 0, "exp": time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1", "role": "USER", "tv": 0,
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"bad scheme", "Token abc.def.ghi"},
		{"empty bearer", "Bearer "},
		{"bad signature", "Bearer " + mustMakeJWT(t, "wrong-secret", 1, "USER", 0, jwt.SigningMethodHS256)},
		{"wrong alg", "Bearer " + mustMakeJWT(t, testSecret, 1, "USER", 0, jwt.SigningMethodHS512)},
		{"missing role", "Bearer " + mustMakeJWT(t, testSecret, 1, "", 0, jwt.SigningMethodHS256)},
		{"zero sub", "Bearer " + mustMakeJWT(t, testSecret, 0, "USER", 0, jwt.SigningMethodHS256)},
		{"garbage token", "bearer not-a-jwt"},
		{"expired", "Bearer " + expired},
		{"no exp", "Bearer " + noExp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.GET("/protected", okHandler, middleware.AuthJWT(cfg))

			rec := runRequest(t, e, http.MethodGet, "/protected", tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthorized", decodeMWError(t, rec).Error)
		})
	}
}

// 正常：ctxに値が入る
func TestMiddleware_AuthJWT_Success_SetsContext(t *testing.T) {
	e := echo.New()
	cfg := config.Config{JWTSecret: testSecret}

	raw := mustMakeJWT(t, cfg.JWTSecret, 123, "USER", 7, jwt.SigningMethodHS256)

	e.GET("/protected", func(c echo.Context) error {
		userID, _ := middleware.UserIDFromContext(c)
		tv, _ := c.Get(middleware.CtxTokenVersionKey).(int)

		return c.JSON(http.StatusOK, mwOKResponse{
			UserID:       userID,
			Role:         middleware.RoleFromContext(c),
			TokenVersion: tv,
		})
	}, middleware.AuthJWT(cfg))

	rec := runRequest(t, e, http.MethodGet, "/protected", "Bearer "+raw)
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decodeMWOK(t, rec)
	assert.Equal(t, int64(123), body.UserID)
	assert.Equal(t, "USER", body.Role)
	assert.Equal(t, 7, body.TokenVersion)
}

// =====================
// OptionalAuth
// =====================

func TestMiddleware_OptionalAuth(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}

	newEcho := func() *echo.Echo {
		e := echo.New()
		e.GET("/cart", func(c echo.Context) error {
			userID, _ := middleware.UserIDFromContext(c)
			return c.JSON(http.StatusOK, mwOKResponse{UserID: userID})
		}, middleware.OptionalAuth(cfg))
		return e
	}

	// ヘッダ無しはゲストとして通す
	rec := runRequest(t, newEcho(), http.MethodGet, "/cart", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decodeMWOK(t, rec).UserID)

	// 正しいトークンならユーザー
	raw := mustMakeJWT(t, testSecret, 9, "USER", 0, jwt.SigningMethodHS256)
	rec = runRequest(t, newEcho(), http.MethodGet, "/cart", "Bearer "+raw)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(9), decodeMWOK(t, rec).UserID)

	// 壊れたトークンはゲストに落とさない
	rec = runRequest(t, newEcho(), http.MethodGet, "/cart", "Bearer broken")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =====================
// TokenVersionGuard
// =====================

// AuthJWT無しでGuardだけ => 401
func TestMiddleware_TokenVersionGuard_Unauthorized_MissingContext(t *testing.T) {
	e := echo.New()
	userRepo := new(MockUserRepository)

	e.GET("/protected", okHandler, middleware.TokenVersionGuard(userRepo))

	rec := runRequest(t, e, http.MethodGet, "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeMWError(t, rec).Error)
}

func TestMiddleware_TokenVersionGuard(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}

	tests := []struct {
		name     string
		dbTV     int
		active   bool
		wantCode int
	}{
		{"match", 5, true, http.StatusOK},
		{"mismatch", 6, true, http.StatusUnauthorized},
		{"inactive", 5, false, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			userRepo := new(MockUserRepository)
			userRepo.On("FindByID", mock.Anything, int64(1)).Return(&model.User{
				ID:           1,
				Role:         model.RoleUser,
				TokenVersion: tt.dbTV,
				IsActive:     tt.active,
			}, nil)

			e.GET("/protected", okHandler, middleware.AuthJWT(cfg), middleware.TokenVersionGuard(userRepo))

			raw := mustMakeJWT(t, testSecret, 1, "USER", 5, jwt.SigningMethodHS256)
			rec := runRequest(t, e, http.MethodGet, "/protected", "Bearer "+raw)
			assert.Equal(t, tt.wantCode, rec.Code)

			userRepo.AssertExpectations(t)
		})
	}
}

// ゲストはDBを見ずに通す
func TestMiddleware_OptionalTokenVersionGuard_Guest(t *testing.T) {
	e := echo.New()
	cfg := config.Config{JWTSecret: testSecret}
	userRepo := new(MockUserRepository)

	e.GET("/cart", okHandler, middleware.OptionalAuth(cfg), middleware.OptionalTokenVersionGuard(userRepo))

	rec := runRequest(t, e, http.MethodGet, "/cart", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	userRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

// =====================
// AdminRoleGuard
// =====================

func TestMiddleware_AdminRoleGuard(t *testing.T) {
	cfg := config.Config{JWTSecret: testSecret}

	tests := []struct {
		name     string
		role     string
		wantCode int
	}{
		{"admin", "ADMIN", http.StatusOK},
		{"user", "USER", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.GET("/admin/x", okHandler, middleware.AuthJWT(cfg), middleware.AdminRoleGuard())

			raw := mustMakeJWT(t, testSecret, 1, tt.role, 0, jwt.SigningMethodHS256)
			rec := runRequest(t, e, http.MethodGet, "/admin/x", "Bearer "+raw)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}

	// roleがctxに無い
	e := echo.New()
	e.GET("/admin/x", okHandler, middleware.AdminRoleGuard())
	rec := runRequest(t, e, http.MethodGet, "/admin/x", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =====================
// GuestSession
// =====================

func newCartEcho(cfg config.Config) *echo.Echo {
	e := echo.New()
	e.GET("/cart", func(c echo.Context) error {
		owner, ok := middleware.CartOwnerFromContext(c)
		if !ok {
			return c.JSON(http.StatusBadRequest, mwErrorResponse{Error: "no owner"})
		}
		return c.JSON(http.StatusOK, mwOKResponse{UserID: owner.UserID, Owner: owner.SessionKey})
	}, middleware.OptionalAuth(cfg), middleware.GuestSession(time.Hour, true))
	return e
}

// Cookieが無ければ発行する
func TestMiddleware_GuestSession_IssuesCookie(t *testing.T) {
	e := newCartEcho(config.Config{JWTSecret: testSecret})

	rec := runRequest(t, e, http.MethodGet, "/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)

	ck := findCookie(rec, middleware.GuestSessionCookie)
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)
	assert.True(t, ck.Secure)
	assert.Equal(t, 3600, ck.MaxAge)
	assert.Equal(t, ck.Value, decodeMWOK(t, rec).Owner)
}

// 既存のCookieはそのまま使う
func TestMiddleware_GuestSession_ReusesCookie(t *testing.T) {
	e := newCartEcho(config.Config{JWTSecret: testSecret})

	rec := runRequest(t, e, http.MethodGet, "/cart", "", &http.Cookie{Name: middleware.GuestSessionCookie, Value: "abc123"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, findCookie(rec, middleware.GuestSessionCookie))
	assert.Equal(t, "abc123", decodeMWOK(t, rec).Owner)
}

// 長すぎるキーは無視して新しく発行
func TestMiddleware_GuestSession_RejectsLongKey(t *testing.T) {
	e := newCartEcho(config.Config{JWTSecret: testSecret})

	long := strings.Repeat("x", 41)
	rec := runRequest(t, e, http.MethodGet, "/cart", "", &http.Cookie{Name: middleware.GuestSessionCookie, Value: long})
	require.Equal(t, http.StatusOK, rec.Code)

	ck := findCookie(rec, middleware.GuestSessionCookie)
	require.NotNil(t, ck)
	assert.NotEqual(t, long, ck.Value)
}

// ログイン中はユーザーのカート。ゲストCookieは発行しない
func TestMiddleware_GuestSession_UserSkips(t *testing.T) {
	e := newCartEcho(config.Config{JWTSecret: testSecret})

	raw := mustMakeJWT(t, testSecret, 42, "USER", 0, jwt.SigningMethodHS256)
	rec := runRequest(t, e, http.MethodGet, "/cart", "Bearer "+raw)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Nil(t, findCookie(rec, middleware.GuestSessionCookie))
	body := decodeMWOK(t, rec)
	assert.Equal(t, int64(42), body.UserID)
	assert.Empty(t, body.Owner)
}

func TestMiddleware_ExpireGuestSession(t *testing.T) {
	e := echo.New()
	e.POST("/login", func(c echo.Context) error {
		middleware.ExpireGuestSession(c, false)
		return c.NoContent(http.StatusNoContent)
	})

	rec := runRequest(t, e, http.MethodPost, "/login", "")
	ck := findCookie(rec, middleware.GuestSessionCookie)
	require.NotNil(t, ck)
	assert.Empty(t, ck.Value)
	assert.Less(t, ck.MaxAge, 0)
}

// =====================
// RequestLogger
// =====================

func TestMiddleware_RequestLogger_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	e := echo.New()
	e.Use(middleware.RequestLogger(log))
	e.GET("/ok", okHandler)
	e.GET("/missing", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, mwErrorResponse{Error: "not found"})
	})
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusInternalServerError, "boom")
	})

	runRequest(t, e, http.MethodGet, "/ok", "")
	runRequest(t, e, http.MethodGet, "/missing", "")
	runRequest(t, e, http.MethodGet, "/boom", "")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "/ok", entries[0].ContextMap()["uri"])
}

// handlerが置いた原因はcauseとして出る
func TestMiddleware_RequestLogger_Cause(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	e := echo.New()
	e.Use(middleware.RequestLogger(zap.New(core)))
	e.GET("/db", func(c echo.Context) error {
		c.Set(middleware.CtxErrorCauseKey, errors.New("connection refused"))
		return c.JSON(http.StatusInternalServerError, mwErrorResponse{Error: "db error"})
	})

	rec := runRequest(t, e, http.MethodGet, "/db", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// レスポンスには出さない
	assert.NotContains(t, rec.Body.String(), "connection refused")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "connection refused", entries[0].ContextMap()["cause"])
}

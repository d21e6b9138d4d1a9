package usecase_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"bookstore/internal/domain/model"
	infraRepo "bookstore/internal/infra/repository"
	"bookstore/internal/usecase"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const subSecret = "sub-secret"

// =====================
// Subscribe
// =====================

func TestSubscriptionUsecase_Subscribe(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	uc := usecase.NewSubscriptionUsecase(infraRepo.NewSubscriptionGormRepository(gdb), subSecret, "http://localhost:3000/")

	s, created, err := uc.Subscribe(ctx, "  Reader@Example.com ")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "reader@example.com", s.Email)
	assert.True(t, s.IsActive)

	// 2回目は作らない
	again, created, err := uc.Subscribe(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, s.ID, again.ID)

	_, _, err = uc.Subscribe(ctx, " ")
	assertHTTPStatus(t, err, http.StatusBadRequest)
}

func TestSubscriptionUsecase_UnsubscribeAndReactivate(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	uc := usecase.NewSubscriptionUsecase(infraRepo.NewSubscriptionGormRepository(gdb), subSecret, "http://localhost:3000/")

	s, _, err := uc.Subscribe(ctx, "reader@example.com")
	require.NoError(t, err)

	link, err := uc.UnsubscribeURL("reader@example.com")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link, "http://localhost:3000/subscriptions/unsubscribe?t="))

	u, err := url.Parse(link)
	require.NoError(t, err)
	require.NoError(t, uc.Unsubscribe(ctx, u.Query().Get("t")))

	var row model.Subscription
	require.NoError(t, gdb.First(&row, s.ID).Error)
	assert.False(t, row.IsActive)

	// 2回目も成功扱い
	require.NoError(t, uc.Unsubscribe(ctx, u.Query().Get("t")))

	// 再購読で有効に戻る
	again, created, err := uc.Subscribe(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, again.IsActive)
	require.NoError(t, gdb.First(&row, s.ID).Error)
	assert.True(t, row.IsActive)
}

func TestSubscriptionUsecase_Unsubscribe_InvalidToken(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	uc := usecase.NewSubscriptionUsecase(infraRepo.NewSubscriptionGormRepository(gdb), subSecret, "http://localhost:3000")

	sign := func(secret string, claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"empty", "", http.StatusBadRequest},
		{"garbage", "not-a-token", http.StatusBadRequest},
		{"wrong secret", sign("other", jwt.MapClaims{"sub": "a@example.com", "purpose": "unsubscribe", "exp": exp}), http.StatusBadRequest},
		{"wrong purpose", sign(subSecret, jwt.MapClaims{"sub": "a@example.com", "purpose": "login", "exp": exp}), http.StatusBadRequest},
		{"expired", sign(subSecret, jwt.MapClaims{"sub": "a@example.com", "purpose": "unsubscribe", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusBadRequest},
		{"unknown email", sign(subSecret, jwt.MapClaims{"sub": "nobody@example.com", "purpose": "unsubscribe", "exp": exp}), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := uc.Unsubscribe(ctx, tt.token)
			assertHTTPStatus(t, err, tt.want)
		})
	}
}

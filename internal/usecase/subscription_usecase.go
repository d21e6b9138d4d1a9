package usecase

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"github.com/golang-jwt/jwt/v5"
)

const (
	unsubscribeTokenTTL = 7 * 24 * time.Hour
	unsubscribePurpose  = "unsubscribe"
)

type SubscriptionUsecase struct {
	subs    repo.SubscriptionRepository
	secret  []byte
	siteURL string
	now     func() time.Time
}

// DI
func NewSubscriptionUsecase(subs repo.SubscriptionRepository, jwtSecret string, siteURL string) *SubscriptionUsecase {
	return &SubscriptionUsecase{
		subs:    subs,
		secret:  []byte(jwtSecret),
		siteURL: strings.TrimRight(siteURL, "/"),
		now:     time.Now,
	}
}

type unsubscribeClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// 既に購読していれば再有効化する。createdは新規作成かどうか
func (u *SubscriptionUsecase) Subscribe(ctx context.Context, email string) (model.Subscription, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(email) > 254 {
		return model.Subscription{}, false, NewHTTPError(http.StatusBadRequest, "invalid email")
	}

	s, err := u.subs.FindByEmail(ctx, email)
	if err == nil {
		if !s.IsActive {
			if err := u.subs.SetActive(ctx, s.ID, true); err != nil {
				return model.Subscription{}, false, NewHTTPError(http.StatusInternalServerError, "db error")
			}
			s.IsActive = true
		}
		return s, false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return model.Subscription{}, false, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	created, err := u.subs.Create(ctx, model.Subscription{Email: email, IsActive: true})
	if errors.Is(err, repo.ErrConflict) {
		// 同時に登録された
		return u.Subscribe(ctx, email)
	}
	if err != nil {
		return model.Subscription{}, false, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return created, true, nil
}

// メールに載せる解除リンク
func (u *SubscriptionUsecase) UnsubscribeURL(email string) (string, error) {
	token, err := u.UnsubscribeToken(email)
	if err != nil {
		return "", err
	}
	return u.siteURL + "/subscriptions/unsubscribe?t=" + url.QueryEscape(token), nil
}

func (u *SubscriptionUsecase) UnsubscribeToken(email string) (string, error) {
	now := u.now()
	claims := unsubscribeClaims{
		Purpose: unsubscribePurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.ToLower(email),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(unsubscribeTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(u.secret)
}

func (u *SubscriptionUsecase) Unsubscribe(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return NewHTTPError(http.StatusBadRequest, "token required")
	}

	claims := &unsubscribeClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return u.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(u.now),
	)
	if err != nil || !parsed.Valid || claims.Purpose != unsubscribePurpose || claims.Subject == "" {
		return NewHTTPError(http.StatusBadRequest, "invalid or expired token")
	}

	s, err := u.subs.FindByEmail(ctx, claims.Subject)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "subscription not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !s.IsActive {
		return nil
	}
	if err := u.subs.SetActive(ctx, s.ID, false); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

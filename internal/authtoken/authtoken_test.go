package authtoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestIssueAndParse(t *testing.T) {
	now := time.Now()
	raw, err := Issue(secret, 42, "ADMIN", 3, now, 15*time.Minute)
	require.NoError(t, err)

	c, err := Parse(secret, raw)
	require.NoError(t, err)
	id, err := c.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "ADMIN", c.Role)
	assert.Equal(t, 3, c.TokenVersion)
	assert.Equal(t, now.Add(15*time.Minute).Unix(), c.ExpiresAt.Unix())
}

func TestParse_Rejects(t *testing.T) {
	now := time.Now()
	sign := func(m jwt.SigningMethod, claims jwt.Claims, key string) string {
		s, err := jwt.NewWithClaims(m, claims).SignedString([]byte(key))
		require.NoError(t, err)
		return s
	}
	valid := func(sub, role string, tv int) Claims {
		return Claims{Role: role, TokenVersion: tv, RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		}}
	}

	tests := []struct {
		name string
		raw  string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong secret", sign(jwt.SigningMethodHS256, valid("1", "USER", 0), "other")},
		{"wrong alg", sign(jwt.SigningMethodHS512, valid("1", "USER", 0), secret)},
		{"zero sub", sign(jwt.SigningMethodHS256, valid("0", "USER", 0), secret)},
		{"non numeric sub", sign(jwt.SigningMethodHS256, valid("alice", "USER", 0), secret)},
		{"missing role", sign(jwt.SigningMethodHS256, valid("1", "", 0), secret)},
		{"negative tv", sign(jwt.SigningMethodHS256, valid("1", "USER", -1), secret)},
		{"expired", sign(jwt.SigningMethodHS256, Claims{Role: "USER", RegisteredClaims: jwt.RegisteredClaims{
			Subject: "1", ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
		}}, secret)},
		{"no exp", sign(jwt.SigningMethodHS256, Claims{Role: "USER", RegisteredClaims: jwt.RegisteredClaims{Subject: "1"}}, secret)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(secret, tt.raw)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestNewOpaque(t *testing.T) {
	p1, h1, err := NewOpaque()
	require.NoError(t, err)
	p2, _, err := NewOpaque()
	require.NoError(t, err)

	assert.NotEqual(t, p1, p2)
	assert.Equal(t, Hash(p1), h1)
	assert.NotEqual(t, p1, h1)
}

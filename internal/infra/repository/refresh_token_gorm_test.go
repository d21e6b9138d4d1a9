package repository

import (
	"context"
	"testing"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newToken(id string, userID int64, expires time.Time) *model.RefreshToken {
	return &model.RefreshToken{ID: id, UserID: userID, TokenHash: "hash-" + id, UserAgent: "UA", ExpiresAt: expires}
}

func TestRefreshTokenRepository_Rotate(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	r := NewRefreshTokenRepository(gdb)
	now := time.Now()

	require.NoError(t, r.Create(ctx, newToken("a", 1, now.Add(time.Hour))))
	require.NoError(t, r.Rotate(ctx, "a", newToken("b", 1, now.Add(time.Hour)), now))

	old, err := r.FindByTokenHash(ctx, "hash-a")
	require.NoError(t, err)
	require.NotNil(t, old.UsedAt)
	require.NotNil(t, old.ReplacedBy)
	assert.Equal(t, "b", *old.ReplacedBy)
	assert.False(t, old.Live(now))

	next, err := r.FindByTokenHash(ctx, "hash-b")
	require.NoError(t, err)
	assert.True(t, next.Live(now))

	// 同じtokenで2回目 => ErrConflict、後継は残らない
	err = r.Rotate(ctx, "a", newToken("c", 1, now.Add(time.Hour)), now)
	assert.ErrorIs(t, err, repo.ErrConflict)
	_, err = r.FindByTokenHash(ctx, "hash-c")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestRefreshTokenRepository_Revoke(t *testing.T) {
	ctx := context.Background()
	r := NewRefreshTokenRepository(newTestDB(t))
	now := time.Now()

	for _, id := range []string{"a", "b"} {
		require.NoError(t, r.Create(ctx, newToken(id, 1, now.Add(time.Hour))))
	}
	require.NoError(t, r.Create(ctx, newToken("other", 2, now.Add(time.Hour))))

	require.NoError(t, r.Revoke(ctx, "a", now))
	assert.ErrorIs(t, r.Revoke(ctx, "a", now), repo.ErrNotFound)
	assert.ErrorIs(t, r.Revoke(ctx, "missing", now), repo.ErrNotFound)

	// aは失効済みなのでbだけ
	n, err := r.RevokeAllByUserID(ctx, 1, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	other, err := r.FindByTokenHash(ctx, "hash-other")
	require.NoError(t, err)
	assert.True(t, other.Live(now))
}

func TestRefreshTokenRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	r := NewRefreshTokenRepository(newTestDB(t))
	now := time.Now()

	require.NoError(t, r.Create(ctx, newToken("old", 1, now.Add(-time.Hour))))
	require.NoError(t, r.Create(ctx, newToken("live", 1, now.Add(time.Hour))))

	n, err := r.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = r.FindByTokenHash(ctx, "hash-old")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = r.FindByTokenHash(ctx, "hash-live")
	assert.NoError(t, err)
}

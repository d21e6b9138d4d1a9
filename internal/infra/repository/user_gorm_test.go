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

func TestUserRepository_Find(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	users := NewUserGormRepository(gdb)
	seedUser(t, gdb, "other")
	alice := seedUser(t, gdb, "alice")

	byID, err := users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	byEmail, err := users.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)

	byName, err := users.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byName.ID)

	// ゼロ値で全件から拾わない
	_, err = users.FindByID(ctx, 0)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = users.FindByEmail(ctx, "")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = users.FindByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	dup := model.User{Username: "alice", Email: "x@example.com", PasswordHash: "x", Role: model.RoleUser, IsActive: true}
	assert.ErrorIs(t, users.Create(ctx, &dup), repo.ErrConflict)
}

// last_loginの更新でtoken_versionが巻き戻らない
func TestUserRepository_TouchLastLoginKeepsTokenVersion(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	users := NewUserGormRepository(gdb)
	alice := seedUser(t, gdb, "alice")

	require.NoError(t, users.IncrementTokenVersion(ctx, alice.ID))
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, users.TouchLastLogin(ctx, alice.ID, at))

	got, err := users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TokenVersion)
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, got.LastLoginAt.Equal(at))

	assert.ErrorIs(t, users.IncrementTokenVersion(ctx, 9999), repo.ErrNotFound)
	assert.ErrorIs(t, users.TouchLastLogin(ctx, 9999, at), repo.ErrNotFound)
}

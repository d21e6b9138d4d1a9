package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookstore/internal/authtoken"
	"bookstore/internal/domain/model"
	"bookstore/internal/repository"
	"bookstore/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// =====================
// Mock: UserRepository
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

// =====================
// Mock: ProfileRepository（Registerで使う分だけ）
// =====================

type MockProfileRepository struct {
	mock.Mock
	repository.ProfileRepository
}

func (m *MockProfileRepository) Create(ctx context.Context, p model.UserProfile) (model.UserProfile, error) {
	args := m.Called(ctx, p)
	out, _ := args.Get(0).(model.UserProfile)
	return out, args.Error(1)
}

// =====================
// Mock: AuthValidator
// =====================

type MockAuthValidator struct {
	mock.Mock
}

func (m *MockAuthValidator) ValidateRegister(ctx context.Context, in usecase.RegisterInput) error {
	args := m.Called(ctx, in)
	return args.Error(0)
}

func (m *MockAuthValidator) ValidateLogin(ctx context.Context, login string, password string) error {
	args := m.Called(ctx, login, password)
	return args.Error(0)
}

func (m *MockAuthValidator) ValidateRefresh(ctx context.Context, refreshToken string, userAgent string) error {
	args := m.Called(ctx, refreshToken, userAgent)
	return args.Error(0)
}

// =====================
// Mock: RefreshTokenRepository
// =====================

type MockRefreshTokenRepository struct {
	mock.Mock
}

func (m *MockRefreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	rt, _ := args.Get(0).(*model.RefreshToken)
	return rt, args.Error(1)
}

func (m *MockRefreshTokenRepository) Rotate(ctx context.Context, oldID string, next *model.RefreshToken, at time.Time) error {
	args := m.Called(ctx, oldID, next, at)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) Revoke(ctx context.Context, tokenID string, at time.Time) error {
	args := m.Called(ctx, tokenID, at)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) RevokeAllByUserID(ctx context.Context, userID int64, at time.Time) (int64, error) {
	args := m.Called(ctx, userID, at)
	return int64(args.Int(0)), args.Error(1)
}

func (m *MockRefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return int64(args.Int(0)), args.Error(1)
}

// =====================
// Mock: GuestCartMerger
// =====================

type MockMerger struct {
	mock.Mock
}

func (m *MockMerger) MergeGuestCartIntoUser(ctx context.Context, key string, userID int64) (usecase.MergeResult, error) {
	args := m.Called(ctx, key, userID)
	res, _ := args.Get(0).(usecase.MergeResult)
	return res, args.Error(1)
}

type recordingAudit struct {
	entries []model.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, entries ...model.AuditLog) error {
	a.entries = append(a.entries, entries...)
	return nil
}

func (a *recordingAudit) List(ctx context.Context, q repository.AuditLogQuery) (repository.AuditLogPage, error) {
	return repository.AuditLogPage{Items: a.entries, Total: int64(len(a.entries))}, nil
}

// Users/Profiles/AuditLogsだけを差し替えたTx
type authTxRepos struct {
	repository.TxRepos
	users    repository.UserRepository
	profiles repository.ProfileRepository
	audit    repository.AuditLogRepository
}

func (r authTxRepos) Users() repository.UserRepository         { return r.users }
func (r authTxRepos) Profiles() repository.ProfileRepository   { return r.profiles }
func (r authTxRepos) AuditLogs() repository.AuditLogRepository { return r.audit }

type authTx struct {
	repos authTxRepos
}

func (t authTx) WithinTx(ctx context.Context, fn func(repository.TxRepos) error) error {
	return fn(t.repos)
}

// =====================
// Helper
// =====================

const testSecret = "test-secret"

func mustHash(t *testing.T, plain string) string {
	t.Helper()
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	return string(b)
}

type authDeps struct {
	users    *MockUserRepository
	profiles *MockProfileRepository
	rt       *MockRefreshTokenRepository
	v        *MockAuthValidator
	merger   *MockMerger
	audit    *recordingAudit
}

func newAuthUC(d authDeps) *usecase.AuthUsecase {
	cfg := usecase.AuthConfig{
		JWTSecret:       testSecret,
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 14 * 24 * time.Hour,
	}
	tx := authTx{repos: authTxRepos{users: d.users, profiles: d.profiles, audit: d.audit}}
	return usecase.NewAuthUsecase(cfg, d.users, d.rt, tx, d.v, d.merger, zap.NewNop())
}

func newAuthDeps() authDeps {
	return authDeps{
		users:    new(MockUserRepository),
		profiles: new(MockProfileRepository),
		rt:       new(MockRefreshTokenRepository),
		v:        new(MockAuthValidator),
		merger:   new(MockMerger),
		audit:    &recordingAudit{},
	}
}

func activeUser(t *testing.T, pass string) *model.User {
	return &model.User{
		ID:           1,
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: mustHash(t, pass),
		Role:         model.RoleUser,
		TokenVersion: 0,
		IsActive:     true,
	}
}

// =====================
// Register
// =====================

func TestAuthUsecase_Register_CreatesProfileAndMerges(t *testing.T) {
	ctx := context.Background()
	d := newAuthDeps()

	in := usecase.RegisterInput{Username: "alice", Email: "Alice@Example.com ", Password: "abc12345", PasswordConfirm: "abc12345"}

	d.v.On("ValidateRegister", mock.Anything, mock.MatchedBy(func(in usecase.RegisterInput) bool {
		return in.Email == "alice@example.com"
	})).Return(nil)
	d.users.On("Create", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
		return u.Email == "alice@example.com" && u.IsActive && u.PasswordHash != "" && u.PasswordHash != "abc12345"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*model.User).ID = 10
	}).Return(nil)
	d.profiles.On("Create", mock.Anything, mock.MatchedBy(func(p model.UserProfile) bool {
		return p.UserID == 10 && p.IsActive
	})).Return(model.UserProfile{ID: 1, UserID: 10}, nil)
	d.rt.On("Create", mock.Anything, mock.AnythingOfType("*model.RefreshToken")).Return(nil)
	d.merger.On("MergeGuestCartIntoUser", mock.Anything, "sess", int64(10)).
		Return(usecase.MergeResult{Status: usecase.MergeCompleted, CartID: 5}, nil)

	res, err := newAuthUC(d).Register(ctx, in, "sess", "UA")
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Body.User.ID)
	assert.NotEmpty(t, res.Body.Token.AccessToken)
	assert.NotEmpty(t, res.RefreshTokenPlain)
	assert.Equal(t, usecase.MergeCompleted, res.Merge.Status)

	d.users.AssertExpectations(t)
	d.profiles.AssertExpectations(t)
	d.merger.AssertExpectations(t)
}

func TestAuthUsecase_Register_Duplicate(t *testing.T) {
	ctx := context.Background()
	d := newAuthDeps()

	d.v.On("ValidateRegister", mock.Anything, mock.Anything).Return(nil)
	d.users.On("Create", mock.Anything, mock.Anything).Return(repository.ErrConflict)

	res, err := newAuthUC(d).Register(ctx, usecase.RegisterInput{Username: "a", Email: "a@b.c", Password: "abc12345", PasswordConfirm: "abc12345"}, "", "UA")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, usecase.ErrConflict)
	d.rt.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// =====================
// Login
// =====================

func TestAuthUsecase_Login_ByEmail_MergesGuestCart(t *testing.T) {
	ctx := context.Background()
	d := newAuthDeps()
	pass := "CorrectPW1"
	user := activeUser(t, pass)

	d.v.On("ValidateLogin", mock.Anything, "alice@example.com", pass).Return(nil)
	d.users.On("FindByEmail", mock.Anything, "alice@example.com").Return(user, nil)
	d.users.On("TouchLastLogin", mock.Anything, int64(1), mock.AnythingOfType("time.Time")).Return(nil)
	d.rt.On("Create", mock.Anything, mock.AnythingOfType("*model.RefreshToken")).Return(nil)
	d.merger.On("MergeGuestCartIntoUser", mock.Anything, "sess", int64(1)).
		Return(usecase.MergeResult{Status: usecase.MergeCompleted, CartID: 3}, nil)

	res, err := newAuthUC(d).Login(ctx, "alice@example.com", pass, "sess", "UA")
	require.NoError(t, err)
	assert.Equal(t, usecase.MergeCompleted, res.Merge.Status)
	assert.Equal(t, int64(3), res.Merge.CartID)
	assert.Greater(t, res.Body.Token.ExpiresIn, 0)
	assert.NotEmpty(t, res.CsrfTokenPlain)

	// access tokenのclaims
	claims, err := authtoken.Parse(testSecret, res.Body.Token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "1", claims.Subject)
	assert.Equal(t, "USER", claims.Role)
	assert.Equal(t, 0, claims.TokenVersion)

	d.users.AssertExpectations(t)
	d.rt.AssertExpectations(t)
	d.merger.AssertExpectations(t)
}

func TestAuthUsecase_Login_ByUsername(t *testing.T) {
	ctx := context.Background()
	d := newAuthDeps()
	pass := "CorrectPW1"

	d.v.On("ValidateLogin", mock.Anything, "alice", pass).Return(nil)
	d.users.On("FindByUsername", mock.Anything, "alice").Return(activeUser(t, pass), nil)
	d.users.On("TouchLastLogin", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	d.rt.On("Create", mock.Anything, mock.Anything).Return(nil)

	res, err := newAuthUC(d).Login(ctx, "alice", pass, "", "UA")
	require.NoError(t, err)
	assert.Equal(t, usecase.MergeNoGuestCart, res.Merge.Status)

	// キーが無ければ統合は呼ばない
	d.merger.AssertNotCalled(t, "MergeGuestCartIntoUser", mock.Anything, mock.Anything, mock.Anything)
	d.users.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
}

// 統合に失敗してもログインは成功
func TestAuthUsecase_Login_MergeFailureDoesNotFailLogin(t *testing.T) {
	ctx := context.Background()
	d := newAuthDeps()
	pass := "CorrectPW1"

	d.v.On("ValidateLogin", mock.Anything, "alice", pass).Return(nil)
	d.users.On("FindByUsername", mock.Anything, "alice").Return(activeUser(t, pass), nil)
	d.users.On("TouchLastLogin", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	d.rt.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.merger.On("MergeGuestCartIntoUser", mock.Anything, "sess", int64(1)).
		Return(usecase.MergeResult{}, errors.New("db down"))

	res, err := newAuthUC(d).Login(ctx, "alice", pass, "sess", "UA")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Body.Token.AccessToken)
	assert.Equal(t, usecase.MergeFailed, res.Merge.Status)
	assert.Zero(t, res.Merge.CartID)
}

// PW違い => 401 / refresh増えない / 統合しない
func TestAuthUsecase_Login_WrongPassword(t *testing.T) {
	ctx := context.Background()
	d := newAuthDeps()

	d.v.On("ValidateLogin", mock.Anything, "alice", "WrongPW1").Return(nil)
	d.users.On("FindByUsername", mock.Anything, "alice").Return(activeUser(t, "CorrectPW1"), nil)

	res, err := newAuthUC(d).Login(ctx, "alice", "WrongPW1", "sess", "UA")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)

	d.rt.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	d.merger.AssertNotCalled(t, "MergeGuestCartIntoUser", mock.Anything, mock.Anything, mock.Anything)
}

// 停止ユーザー => forbidden
func TestAuthUsecase_Login_InactiveUser(t *testing.T) {
	ctx := context.Background()
	d := newAuthDeps()
	pass := "CorrectPW1"
	user := activeUser(t, pass)
	user.IsActive = false

	d.v.On("ValidateLogin", mock.Anything, "alice", pass).Return(nil)
	d.users.On("FindByUsername", mock.Anything, "alice").Return(user, nil)

	res, err := newAuthUC(d).Login(ctx, "alice", pass, "", "UA")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, usecase.ErrForbidden)
	d.rt.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// =====================
// Refresh
// =====================

// 正常（旧tokenと後継をRotateで入れ替え）
func TestAuthUsecase_Refresh_Success(t *testing.T) {
	ctx := context.Background()
	d := newAuthDeps()

	d.v.On("ValidateRefresh", mock.Anything, "refresh-plain", "UA").Return(nil)
	d.rt.On("FindByTokenHash", mock.Anything, authtoken.Hash("refresh-plain")).Return(&model.RefreshToken{
		ID:        "rt-old",
		UserID:    1,
		UserAgent: "UA",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}, nil)
	d.users.On("FindByID", mock.Anything, int64(1)).Return(activeUser(t, "x"), nil)

	var next *model.RefreshToken
	d.rt.On("Rotate", mock.Anything, "rt-old", mock.AnythingOfType("*model.RefreshToken"), mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) { next = args.Get(2).(*model.RefreshToken) }).
		Return(nil)

	res, err := newAuthUC(d).Refresh(ctx, "refresh-plain", "UA")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Body.AccessToken)
	assert.NotEmpty(t, res.CsrfTokenPlain)
	assert.NotEqual(t, "refresh-plain", res.RefreshTokenPlain)

	// 後継は平文のhashで保存される
	require.NotNil(t, next)
	assert.Equal(t, authtoken.Hash(res.RefreshTokenPlain), next.TokenHash)
	assert.Equal(t, int64(1), next.UserID)
	assert.Equal(t, "UA", next.UserAgent)
	assert.True(t, next.ExpiresAt.After(time.Now().Add(13*24*time.Hour)))

	d.rt.AssertExpectations(t)
}

// 使用済み・UA違い・並行リフレッシュは全セッション失効 + security incident
func TestAuthUsecase_Refresh_Incidents(t *testing.T) {
	used := time.Now().Add(-time.Minute)

	tests := []struct {
		name   string
		token  model.RefreshToken
		ua     string
		rotate error
	}{
		{
			name:  "replayed",
			token: model.RefreshToken{ID: "rt", UserID: 1, UserAgent: "UA", ExpiresAt: time.Now().Add(time.Hour), UsedAt: &used},
			ua:    "UA",
		},
		{
			name:  "user agent changed",
			token: model.RefreshToken{ID: "rt", UserID: 1, UserAgent: "UA", ExpiresAt: time.Now().Add(time.Hour)},
			ua:    "curl/8.0",
		},
		{
			name:   "raced",
			token:  model.RefreshToken{ID: "rt", UserID: 1, UserAgent: "UA", ExpiresAt: time.Now().Add(time.Hour)},
			ua:     "UA",
			rotate: repository.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newAuthDeps()
			tok := tt.token

			d.v.On("ValidateRefresh", mock.Anything, "plain", tt.ua).Return(nil)
			d.rt.On("FindByTokenHash", mock.Anything, mock.Anything).Return(&tok, nil)
			d.users.On("FindByID", mock.Anything, int64(1)).Return(activeUser(t, "x"), nil).Maybe()
			d.rt.On("Rotate", mock.Anything, "rt", mock.Anything, mock.Anything).Return(tt.rotate).Maybe()
			d.rt.On("RevokeAllByUserID", mock.Anything, int64(1), mock.AnythingOfType("time.Time")).Return(2, nil)

			res, err := newAuthUC(d).Refresh(context.Background(), "plain", tt.ua)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, usecase.ErrSecurityIncident)
			d.rt.AssertCalled(t, "RevokeAllByUserID", mock.Anything, int64(1), mock.Anything)
		})
	}
}

// 期限切れ・失効済み・未知のtokenは401のみ
func TestAuthUsecase_Refresh_Unauthorized(t *testing.T) {
	revoked := time.Now().Add(-time.Minute)

	tests := []struct {
		name  string
		token *model.RefreshToken
		err   error
	}{
		{"expired", &model.RefreshToken{ID: "rt", UserID: 1, ExpiresAt: time.Now().Add(-time.Minute)}, nil},
		{"revoked", &model.RefreshToken{ID: "rt", UserID: 1, ExpiresAt: time.Now().Add(time.Hour), RevokedAt: &revoked}, nil},
		{"unknown", nil, repository.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newAuthDeps()
			d.v.On("ValidateRefresh", mock.Anything, "plain", "UA").Return(nil)
			d.rt.On("FindByTokenHash", mock.Anything, mock.Anything).Return(tt.token, tt.err)

			res, err := newAuthUC(d).Refresh(context.Background(), "plain", "UA")
			assert.Nil(t, res)
			assert.ErrorIs(t, err, usecase.ErrUnauthorized)
			d.rt.AssertNotCalled(t, "Rotate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			d.rt.AssertNotCalled(t, "RevokeAllByUserID", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

// =====================
// Logout
// =====================

func TestAuthUsecase_Logout(t *testing.T) {
	d := newAuthDeps()
	d.rt.On("FindByTokenHash", mock.Anything, authtoken.Hash("plain")).Return(&model.RefreshToken{ID: "rt", UserID: 1}, nil)
	// 2回目は失効済み
	d.rt.On("Revoke", mock.Anything, "rt", mock.Anything).Return(nil).Once()
	d.rt.On("Revoke", mock.Anything, "rt", mock.Anything).Return(repository.ErrNotFound).Once()

	uc := newAuthUC(d)
	for i := 0; i < 2; i++ {
		res, err := uc.Logout(context.Background(), "plain")
		require.NoError(t, err)
		assert.Equal(t, "logout success", res.Message)
	}

	_, err := uc.Logout(context.Background(), "")
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)
	d.rt.AssertExpectations(t)
}

// =====================
// ForceLogout
// =====================

func TestAuthUsecase_ForceLogout(t *testing.T) {
	ctx := context.Background()
	d := newAuthDeps()

	u := activeUser(t, "x")
	u.TokenVersion = 1
	d.users.On("IncrementTokenVersion", mock.Anything, int64(1)).Return(nil)
	d.users.On("FindByID", mock.Anything, int64(1)).Return(u, nil)
	d.rt.On("RevokeAllByUserID", mock.Anything, int64(1), mock.AnythingOfType("time.Time")).Return(3, nil)

	res, err := newAuthUC(d).ForceLogout(ctx, 99, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewTokenVersion)
	d.users.AssertExpectations(t)
	d.rt.AssertExpectations(t)

	// 誰が誰を締め出したか
	require.Len(t, d.audit.entries, 1)
	entry := d.audit.entries[0]
	assert.Equal(t, int64(99), entry.ActorUserID)
	assert.Equal(t, model.AuditActionForceLogout, entry.Action)
	assert.Equal(t, model.AuditResourceUser, entry.ResourceType)
	assert.Equal(t, `{"token_version":0}`, entry.BeforeJSON)
	assert.Equal(t, `{"token_version":1}`, entry.AfterJSON)
}

func TestAuthUsecase_ForceLogout_UnknownUser(t *testing.T) {
	d := newAuthDeps()
	d.users.On("IncrementTokenVersion", mock.Anything, int64(404)).Return(repository.ErrNotFound)

	res, err := newAuthUC(d).ForceLogout(context.Background(), 99, 404)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, usecase.ErrValidation)
	assert.Empty(t, d.audit.entries)
	d.rt.AssertNotCalled(t, "RevokeAllByUserID", mock.Anything, mock.Anything, mock.Anything)
}

package usecase

import (
	"bookstore/internal/domain/model"
	"bookstore/internal/repository"

	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// usecaseがValidatorInterfaceに依存する約束
type AuthValidator interface {
	ValidateRegister(ctx context.Context, in RegisterInput) error
	ValidateLogin(ctx context.Context, login string, password string) error
	ValidateRefresh(ctx context.Context, refreshToken string, userAgent string) error
}

// ログイン直後にゲストカートを統合する
type GuestCartMerger interface {
	MergeGuestCartIntoUser(ctx context.Context, guestSessionKey string, userID int64) (MergeResult, error)
}

type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type UserDTO struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
	IsActive     bool   `json:"is_active"`
}

type JwtAccessTokenDTO struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenVersion int    `json:"token_version"`
}

type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	PasswordConfirm string
}

type AuthLoginResponse struct {
	User  UserDTO           `json:"user"`
	Token JwtAccessTokenDTO `json:"token"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

type ForceLogoutResponse struct {
	UserID          int64 `json:"user_id"`
	NewTokenVersion int   `json:"new_token_version"`
}

// handlerがCookieに詰める値も一緒に返す
type LoginResult struct {
	Body              AuthLoginResponse
	RefreshTokenPlain string
	CsrfTokenPlain    string
	Merge             MergeResult
}

type RefreshResult struct {
	Body              JwtAccessTokenDTO
	RefreshTokenPlain string
	CsrfTokenPlain    string
}

type AuthUsecase struct {
	cfg       AuthConfig
	users     repository.UserRepository
	rtRepo    repository.RefreshTokenRepository
	tx        repository.TransactionManager
	validator AuthValidator
	merger    GuestCartMerger
	log       *zap.Logger
	now       func() time.Time
}

func NewAuthUsecase(
	cfg AuthConfig,
	users repository.UserRepository,
	rtRepo repository.RefreshTokenRepository,
	tx repository.TransactionManager,
	validator AuthValidator,
	merger GuestCartMerger,
	log *zap.Logger,
) *AuthUsecase {
	return &AuthUsecase{
		cfg:       cfg,
		users:     users,
		rtRepo:    rtRepo,
		tx:        tx,
		validator: validator,
		merger:    merger,
		log:       log,
		now:       time.Now,
	}
}

// 会員登録。プロフィールも同じTxで作り、そのままログイン状態にする。
func (u *AuthUsecase) Register(ctx context.Context, in RegisterInput, guestSessionKey string, userAgent string) (*LoginResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	//入力検証（validatorに寄せる）
	if err := u.validator.ValidateRegister(ctx, in); err != nil {
		return nil, err
	}

	//パスワードは必ずハッシュ化して保存（平文保存しない）
	pwHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrInternal
	}

	now := u.now()
	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(pwHash),
		Role:         model.RoleUser,
		TokenVersion: 0,
		IsActive:     true,
		LastLoginAt:  &now,
	}

	err = u.tx.WithinTx(ctx, func(r repository.TxRepos) error {
		if err := r.Users().Create(ctx, user); err != nil {
			return err
		}
		_, err := r.Profiles().Create(ctx, model.UserProfile{
			UserID:   user.ID,
			IsActive: true,
		})
		return err
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, ErrConflict
	}
	if err != nil {
		u.log.Error("register failed", zap.String("username", in.Username), zap.Error(err))
		return nil, ErrInternal
	}

	res, err := u.issueSession(ctx, user, userAgent)
	if err != nil {
		return nil, err
	}
	res.Merge = u.mergeGuestCart(ctx, guestSessionKey, user.ID)
	return res, nil
}

// loginはusernameかemail
func (u *AuthUsecase) Login(ctx context.Context, login string, password string, guestSessionKey string, userAgent string) (*LoginResult, error) {
	// 1) 入力検証
	if err := u.validator.ValidateLogin(ctx, login, password); err != nil {
		return nil, err
	}

	//ユーザー取得
	login = strings.TrimSpace(login)
	var user *model.User
	var err error
	if strings.Contains(login, "@") {
		user, err = u.users.FindByEmail(ctx, strings.ToLower(login))
	} else {
		user, err = u.users.FindByUsername(ctx, login)
	}
	if err != nil || user == nil {
		return nil, ErrUnauthorized
	}

	//パスワード照合（bcrypt）
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrUnauthorized
	}

	//停止ユーザーはログイン不可
	if !user.IsActive {
		return nil, ErrForbidden
	}

	//last_loginだけ更新（token_versionを巻き戻さない）
	now := u.now()
	user.LastLoginAt = &now
	if err := u.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		u.log.Warn("update last_login failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	res, err := u.issueSession(ctx, user, userAgent)
	if err != nil {
		return nil, err
	}
	res.Merge = u.mergeGuestCart(ctx, guestSessionKey, user.ID)
	return res, nil
}

// カート統合の失敗でログインを失敗にはしない
func (u *AuthUsecase) mergeGuestCart(ctx context.Context, guestSessionKey string, userID int64) MergeResult {
	if guestSessionKey == "" || u.merger == nil {
		return MergeResult{Status: MergeNoGuestCart}
	}

	res, err := u.merger.MergeGuestCartIntoUser(ctx, guestSessionKey, userID)
	if err != nil {
		u.log.Error("guest cart merge failed",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return MergeResult{Status: MergeFailed}
	}
	return res
}

// model.UserをAPI返却用DTOに変換。
func toUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Role:         string(u.Role),
		TokenVersion: u.TokenVersion,
		IsActive:     u.IsActive,
	}
}

func (u *AuthUsecase) Me(ctx context.Context, userID int64) (*UserDTO, error) {
	if userID <= 0 {
		return nil, ErrUnauthorized
	}

	user, err := u.users.FindByID(ctx, userID)
	if err != nil || user == nil {
		return nil, ErrUnauthorized
	}

	if !user.IsActive {
		return nil, ErrForbidden
	}

	dto := toUserDTO(user)
	return &dto, nil
}

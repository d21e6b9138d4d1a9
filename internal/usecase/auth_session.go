package usecase

import (
	"context"
	"errors"

	"bookstore/internal/authtoken"
	"bookstore/internal/domain/model"
	"bookstore/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// access/refresh/csrf をまとめて発行
func (u *AuthUsecase) issueSession(ctx context.Context, user *model.User, userAgent string) (*LoginResult, error) {
	refreshPlain, rt, err := u.newRefreshToken(user.ID, userAgent)
	if err != nil {
		return nil, ErrInternal
	}
	if err := u.rtRepo.Create(ctx, rt); err != nil {
		u.log.Error("store refresh token failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, ErrInternal
	}

	access, csrf, err := u.accessAndCSRF(user)
	if err != nil {
		return nil, ErrInternal
	}

	return &LoginResult{
		Body:              AuthLoginResponse{User: toUserDTO(user), Token: access},
		RefreshTokenPlain: refreshPlain,
		CsrfTokenPlain:    csrf,
	}, nil
}

// 使えるのは1回だけ。使用済みが再提示されたらそのユーザーの全セッションを失効
func (u *AuthUsecase) Refresh(ctx context.Context, refreshTokenPlain string, userAgent string) (*RefreshResult, error) {
	if err := u.validator.ValidateRefresh(ctx, refreshTokenPlain, userAgent); err != nil {
		return nil, err
	}

	rt, err := u.rtRepo.FindByTokenHash(ctx, authtoken.Hash(refreshTokenPlain))
	if err != nil {
		return nil, ErrUnauthorized
	}

	now := u.now()
	switch {
	case rt.UsedAt != nil:
		return nil, u.securityIncident(ctx, rt.UserID, "refresh token replayed")
	case rt.RevokedAt != nil, !now.Before(rt.ExpiresAt):
		return nil, ErrUnauthorized
	case rt.UserAgent != "" && userAgent != "" && rt.UserAgent != userAgent:
		return nil, u.securityIncident(ctx, rt.UserID, "user agent changed")
	}

	user, err := u.users.FindByID(ctx, rt.UserID)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if !user.IsActive {
		return nil, ErrForbidden
	}

	nextPlain, next, err := u.newRefreshToken(user.ID, userAgent)
	if err != nil {
		return nil, ErrInternal
	}
	if err := u.rtRepo.Rotate(ctx, rt.ID, next, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// 同じtokenで並行リフレッシュされた
			return nil, u.securityIncident(ctx, rt.UserID, "refresh token raced")
		}
		return nil, ErrInternal
	}

	access, csrf, err := u.accessAndCSRF(user)
	if err != nil {
		return nil, ErrInternal
	}
	return &RefreshResult{
		Body:              access,
		RefreshTokenPlain: nextPlain,
		CsrfTokenPlain:    csrf,
	}, nil
}

func (u *AuthUsecase) Logout(ctx context.Context, refreshTokenPlain string) (*SuccessResponse, error) {
	if refreshTokenPlain == "" {
		return nil, ErrUnauthorized
	}

	rt, err := u.rtRepo.FindByTokenHash(ctx, authtoken.Hash(refreshTokenPlain))
	if err != nil {
		return nil, ErrUnauthorized
	}

	// 失効済みなら何もしない
	if err := u.rtRepo.Revoke(ctx, rt.ID, u.now()); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInternal
	}
	return &SuccessResponse{Message: "logout success"}, nil
}

// 管理者による強制ログアウト。token_versionを上げるので発行済みaccess tokenも無効
func (u *AuthUsecase) ForceLogout(ctx context.Context, adminUserID int64, targetUserID int64) (*ForceLogoutResponse, error) {
	if targetUserID <= 0 {
		return nil, ErrValidation
	}

	type tokenVersion struct {
		TokenVersion int `json:"token_version"`
	}

	var user *model.User
	err := u.tx.WithinTx(ctx, func(r repository.TxRepos) error {
		if err := r.Users().IncrementTokenVersion(ctx, targetUserID); err != nil {
			return err
		}
		var err error
		if user, err = r.Users().FindByID(ctx, targetUserID); err != nil {
			return err
		}
		return r.AuditLogs().Record(ctx, model.NewAuditLog(adminUserID, model.AuditActionForceLogout, model.AuditResourceUser, targetUserID,
			tokenVersion{user.TokenVersion - 1}, tokenVersion{user.TokenVersion}))
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrValidation
	}
	if err != nil {
		return nil, ErrInternal
	}

	// refresh tokenはTx外。失敗してもtoken_versionで締め出せている
	revoked, err := u.rtRepo.RevokeAllByUserID(ctx, targetUserID, u.now())
	if err != nil {
		u.log.Error("revoke sessions failed", zap.Int64("user_id", targetUserID), zap.Error(err))
	}
	u.log.Info("force logout",
		zap.Int64("admin_user_id", adminUserID),
		zap.Int64("user_id", targetUserID),
		zap.Int("token_version", user.TokenVersion),
		zap.Int64("revoked_sessions", revoked),
	)

	return &ForceLogoutResponse{
		UserID:          user.ID,
		NewTokenVersion: user.TokenVersion,
	}, nil
}

func (u *AuthUsecase) securityIncident(ctx context.Context, userID int64, reason string) error {
	n, err := u.rtRepo.RevokeAllByUserID(ctx, userID, u.now())
	u.log.Warn("refresh token incident",
		zap.Int64("user_id", userID),
		zap.String("reason", reason),
		zap.Int64("revoked_sessions", n),
		zap.Error(err),
	)
	return ErrSecurityIncident
}

func (u *AuthUsecase) newRefreshToken(userID int64, userAgent string) (string, *model.RefreshToken, error) {
	plain, hash, err := authtoken.NewOpaque()
	if err != nil {
		return "", nil, err
	}
	return plain, &model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: hash,
		UserAgent: userAgent,
		ExpiresAt: u.now().Add(u.cfg.RefreshTokenTTL),
	}, nil
}

func (u *AuthUsecase) accessAndCSRF(user *model.User) (JwtAccessTokenDTO, string, error) {
	signed, err := authtoken.Issue(u.cfg.JWTSecret, user.ID, string(user.Role), user.TokenVersion, u.now(), u.cfg.AccessTokenTTL)
	if err != nil {
		return JwtAccessTokenDTO{}, "", err
	}
	csrf, _, err := authtoken.NewOpaque()
	if err != nil {
		return JwtAccessTokenDTO{}, "", err
	}
	return JwtAccessTokenDTO{
		AccessToken:  signed,
		ExpiresIn:    int(u.cfg.AccessTokenTTL.Seconds()),
		TokenVersion: user.TokenVersion,
	}, csrf, nil
}

package validator

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"bookstore/internal/repository"
	"bookstore/internal/usecase"
)

var (
	// 入力が不正
	ErrInvalidInput = errors.New("invalid input")

	// emailが既に使用済み
	ErrEmailAlreadyUsed = errors.New("email already used")

	ErrUsernameAlreadyUsed = errors.New("username already used")

	// 確認用パスワードと違う
	ErrPasswordMismatch = errors.New("password mismatch")

	// 8文字以上で英字と数字の両方を含む
	ErrWeakPassword = errors.New("weak password")

	// refresh tokenが不正
	ErrInvalidRefresh = errors.New("invalid refresh")
)

type authValidator struct {
	users repository.UserRepository
	v     *RequestValidator
}

// Usecaseは interface を依存注入
func NewAuthValidator(users repository.UserRepository, v *RequestValidator) usecase.AuthValidator {
	return &authValidator{users: users, v: v}
}

// サインアップの入力を検証
func (a *authValidator) ValidateRegister(ctx context.Context, in usecase.RegisterInput) error {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	// 必須チェック
	if a.v.Var(username, "required,max=150,username") != nil {
		return ErrInvalidInput
	}
	if a.v.Var(email, "required,email,max=255") != nil {
		return ErrInvalidInput
	}

	if in.Password != in.PasswordConfirm {
		return ErrPasswordMismatch
	}
	if !isStrongPassword(in.Password) {
		return ErrWeakPassword
	}

	// 重複チェック（DBが必要）
	if u, err := a.users.FindByEmail(ctx, email); err == nil && u != nil {
		return ErrEmailAlreadyUsed
	}
	if u, err := a.users.FindByUsername(ctx, username); err == nil && u != nil {
		return ErrUsernameAlreadyUsed
	}

	return nil
}

// ログインの入力を検証
func (a *authValidator) ValidateLogin(ctx context.Context, login string, password string) error {
	if strings.TrimSpace(login) == "" || password == "" {
		return ErrInvalidInput
	}
	return nil
}

// refresh 入力を検証
func (a *authValidator) ValidateRefresh(ctx context.Context, refreshToken string, userAgent string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return ErrInvalidRefresh
	}
	return nil
}

func isStrongPassword(pw string) bool {
	if len(pw) < 8 {
		return false
	}
	var letter, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

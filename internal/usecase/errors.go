package usecase

import (
	"errors"
	"fmt"
)

// 認証系。handlerのwriteAuthErrorでステータスに変換する
var (
	ErrValidation       = errors.New("validation error")  // 400
	ErrUnauthorized     = errors.New("unauthorized")      // 401
	ErrSecurityIncident = errors.New("security incident") // 401 refresh tokenの再利用
	ErrForbidden        = errors.New("forbidden")         // 403
	ErrConflict         = errors.New("conflict")          // 409
	ErrInternal         = errors.New("internal error")    // 500
)

// それ以外のusecaseはこれを返し、handlerがそのままステータスにする
type HTTPError struct {
	Status  int
	Message string
	cause   error
}

func (e *HTTPError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%d: %s: %v", e.Status, e.Message, e.cause)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error { return e.cause }

func NewHTTPError(status int, message string) error {
	return &HTTPError{Status: status, Message: message}
}

// 原因はログ用。レスポンスにはMessageだけ出す
func WrapHTTPError(status int, message string, cause error) error {
	return &HTTPError{Status: status, Message: message, cause: cause}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

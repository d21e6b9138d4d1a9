package handler

import (
	"errors"
	"net/http"
	"strconv"

	"bookstore/internal/middleware"
	"bookstore/internal/usecase"
	"bookstore/internal/validator"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

func errorJSON(msg string) ErrorResponse {
	return ErrorResponse{Error: msg}
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		if he.Status >= http.StatusInternalServerError {
			c.Set(middleware.CtxErrorCauseKey, err)
		}
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	//500
	c.Set(middleware.CtxErrorCauseKey, err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// 認証系のエラーをステータスへ
func writeAuthError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, validator.ErrInvalidInput),
		errors.Is(err, validator.ErrPasswordMismatch),
		errors.Is(err, validator.ErrWeakPassword),
		errors.Is(err, usecase.ErrValidation):
		return c.JSON(http.StatusBadRequest, errorJSON(err.Error()))
	case errors.Is(err, validator.ErrEmailAlreadyUsed),
		errors.Is(err, validator.ErrUsernameAlreadyUsed),
		errors.Is(err, usecase.ErrConflict):
		return c.JSON(http.StatusConflict, errorJSON(err.Error()))
	case errors.Is(err, validator.ErrInvalidRefresh),
		errors.Is(err, usecase.ErrUnauthorized),
		errors.Is(err, usecase.ErrSecurityIncident):
		return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
	case errors.Is(err, usecase.ErrForbidden):
		return c.JSON(http.StatusForbidden, errorJSON("forbidden"))
	default:
		return c.JSON(http.StatusInternalServerError, errorJSON("internal error"))
	}
}

// Bind + Validate。失敗したら400を書いてfalse
func bindAndValidate(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, errorJSON("invalid body"))
	}
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, errorJSON(validator.Message(err)))
	}
	return true, nil
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	return middleware.UserIDFromContext(c)
}

func parseIDParam(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// 未指定ならdef
func queryInt(c echo.Context, name string, def int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

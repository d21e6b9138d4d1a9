package handler

import (
	"net/http"
	"time"

	"bookstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

const maxPictureSize = 5 << 20

type ProfileUpdateRequest struct {
	FirstName   string `json:"first_name" validate:"max=50"`
	LastName    string `json:"last_name" validate:"max=50"`
	Street      string `json:"street" validate:"max=100"`
	City        string `json:"city" validate:"max=50"`
	PostalCode  string `json:"postal_code" validate:"max=20"`
	Country     string `json:"country" validate:"max=50"`
	BirthDate   string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Bio         string `json:"bio" validate:"max=500"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,phone"`
}

type favoriteResponse struct {
	Favorited bool `json:"favorited"`
}

type pictureResponse struct {
	ProfilePictureURL string `json:"profile_picture_url"`
}

type ProfileHandler struct {
	uc *usecase.ProfileUsecase
}

// DI
func NewProfileHandler(uc *usecase.ProfileUsecase) *ProfileHandler {
	return &ProfileHandler{uc: uc}
}

// 全部ログイン必須
func (h *ProfileHandler) RegisterRoutes(e *echo.Echo, auth ...echo.MiddlewareFunc) {
	e.GET("/profiles/:username", h.get, auth...)
	e.GET("/profile", h.mine, auth...)
	e.PUT("/profile", h.update, auth...)
	e.PUT("/profile/picture", h.uploadPicture, auth...)
	e.DELETE("/profile/picture", h.resetPicture, auth...)
	e.POST("/books/:slug/favorite", h.toggleFavorite, auth...)
}

func (h *ProfileHandler) get(c echo.Context) error {
	out, err := h.uc.GetByUsername(c.Request().Context(), c.Param("username"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ProfileHandler) mine(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.GetMine(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ProfileHandler) update(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req ProfileUpdateRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	var birth *time.Time
	if req.BirthDate != "" {
		t, err := time.Parse("2006-01-02", req.BirthDate)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid birth_date"})
		}
		birth = &t
	}

	out, err := h.uc.Update(c.Request().Context(), userID, usecase.ProfileInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Street:      req.Street,
		City:        req.City,
		PostalCode:  req.PostalCode,
		Country:     req.Country,
		BirthDate:   birth,
		Bio:         req.Bio,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// multipart の "picture"
func (h *ProfileHandler) uploadPicture(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	fh, err := c.FormFile("picture")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "picture required"})
	}
	if fh.Size > maxPictureSize {
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "picture too large"})
	}

	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid picture"})
	}
	defer f.Close()

	url, err := h.uc.UploadPicture(c.Request().Context(), userID, f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, pictureResponse{ProfilePictureURL: url})
}

func (h *ProfileHandler) resetPicture(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	if err := h.uc.ResetPicture(c.Request().Context(), userID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, pictureResponse{})
}

func (h *ProfileHandler) toggleFavorite(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	fav, err := h.uc.ToggleFavorite(c.Request().Context(), userID, c.Param("slug"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, favoriteResponse{Favorited: fav})
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bookstore/internal/domain/model"
	"bookstore/internal/imagestore"
	repo "bookstore/internal/repository"

	"go.uber.org/zap"
)

type ProfileUsecase struct {
	profiles repo.ProfileRepository
	users    repo.UserRepository
	books    repo.BookRepository
	images   imagestore.Store
	log      *zap.Logger
	now      func() time.Time
}

// DI
func NewProfileUsecase(profiles repo.ProfileRepository, users repo.UserRepository, books repo.BookRepository, images imagestore.Store, log *zap.Logger) *ProfileUsecase {
	return &ProfileUsecase{
		profiles: profiles,
		users:    users,
		books:    books,
		images:   images,
		log:      log,
		now:      time.Now,
	}
}

type ProfileDTO struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	model.UserProfile
}

// PUT /profile の入力。形式チェックはhandler側のvalidatorで済ませる
type ProfileInput struct {
	FirstName   string
	LastName    string
	Street      string
	City        string
	PostalCode  string
	Country     string
	BirthDate   *time.Time
	Bio         string
	PhoneNumber string
}

func (u *ProfileUsecase) GetByUsername(ctx context.Context, username string) (ProfileDTO, error) {
	user, err := u.users.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repo.ErrNotFound) {
		return ProfileDTO{}, NewHTTPError(http.StatusNotFound, "profile not found")
	}
	if err != nil {
		return ProfileDTO{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return u.load(ctx, user)
}

func (u *ProfileUsecase) GetMine(ctx context.Context, userID int64) (ProfileDTO, error) {
	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return ProfileDTO{}, NewHTTPError(http.StatusNotFound, "profile not found")
	}
	if err != nil {
		return ProfileDTO{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return u.load(ctx, user)
}

func (u *ProfileUsecase) Update(ctx context.Context, userID int64, in ProfileInput) (ProfileDTO, error) {
	if in.BirthDate != nil && in.BirthDate.After(u.now()) {
		return ProfileDTO{}, NewHTTPError(http.StatusBadRequest, "birth_date must be in the past")
	}

	p, err := u.profiles.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return ProfileDTO{}, NewHTTPError(http.StatusNotFound, "profile not found")
	}
	if err != nil {
		return ProfileDTO{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	p.FirstName = strings.TrimSpace(in.FirstName)
	p.LastName = strings.TrimSpace(in.LastName)
	p.Street = strings.TrimSpace(in.Street)
	p.City = strings.TrimSpace(in.City)
	p.PostalCode = strings.TrimSpace(in.PostalCode)
	p.Country = strings.TrimSpace(in.Country)
	p.BirthDate = in.BirthDate
	p.Bio = in.Bio
	p.PhoneNumber = strings.TrimSpace(in.PhoneNumber)

	if err := u.profiles.Update(ctx, p); err != nil {
		return ProfileDTO{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return u.GetMine(ctx, userID)
}

// お気に入りを付け外しする。戻り値は操作後の状態
func (u *ProfileUsecase) ToggleFavorite(ctx context.Context, userID int64, bookSlug string) (bool, error) {
	b, err := u.books.FindBySlug(ctx, bookSlug)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !b.IsPublished) {
		return false, NewHTTPError(http.StatusNotFound, "book not found")
	}
	if err != nil {
		return false, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	p, err := u.profiles.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, NewHTTPError(http.StatusNotFound, "profile not found")
	}
	if err != nil {
		return false, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	has, err := u.profiles.HasFavorite(ctx, p.ID, b.ID)
	if err != nil {
		return false, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if has {
		if err := u.profiles.RemoveFavorite(ctx, p.ID, b.ID); err != nil {
			return false, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return false, nil
	}
	if err := u.profiles.AddFavorite(ctx, p.ID, b.ID); err != nil {
		return false, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return true, nil
}

// 新しい画像を上げてから古い画像を消す
func (u *ProfileUsecase) UploadPicture(ctx context.Context, userID int64, file io.Reader) (string, error) {
	p, err := u.profiles.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", NewHTTPError(http.StatusNotFound, "profile not found")
	}
	if err != nil {
		return "", NewHTTPError(http.StatusInternalServerError, "db error")
	}

	publicID := fmt.Sprintf("user_%d_%d", userID, u.now().Unix())
	url, err := u.images.Upload(ctx, file, publicID)
	if errors.Is(err, imagestore.ErrNotConfigured) {
		return "", NewHTTPError(http.StatusServiceUnavailable, "image upload is not available")
	}
	if err != nil {
		u.log.Error("picture upload failed", zap.Int64("user_id", userID), zap.Error(err))
		return "", NewHTTPError(http.StatusBadGateway, "upload failed")
	}

	if err := u.profiles.UpdatePicture(ctx, userID, url); err != nil {
		return "", NewHTTPError(http.StatusInternalServerError, "db error")
	}
	u.deleteOld(ctx, userID, p.ProfilePictureURL)
	return url, nil
}

func (u *ProfileUsecase) ResetPicture(ctx context.Context, userID int64) error {
	p, err := u.profiles.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "profile not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if p.ProfilePictureURL == "" {
		return nil
	}

	if err := u.profiles.UpdatePicture(ctx, userID, ""); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	u.deleteOld(ctx, userID, p.ProfilePictureURL)
	return nil
}

// 古い画像の削除失敗はログだけ
func (u *ProfileUsecase) deleteOld(ctx context.Context, userID int64, url string) {
	if url == "" {
		return
	}
	if err := u.images.Delete(ctx, url); err != nil {
		u.log.Warn("old picture delete failed", zap.Int64("user_id", userID), zap.String("url", url), zap.Error(err))
	}
}

func (u *ProfileUsecase) load(ctx context.Context, user *model.User) (ProfileDTO, error) {
	p, err := u.profiles.FindByUserID(ctx, user.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return ProfileDTO{}, NewHTTPError(http.StatusNotFound, "profile not found")
	}
	if err != nil {
		return ProfileDTO{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return ProfileDTO{
		Username:    user.Username,
		Email:       user.Email,
		FullName:    p.FullName(),
		UserProfile: p,
	}, nil
}

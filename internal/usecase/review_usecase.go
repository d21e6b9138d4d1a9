package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"
)

const reviewsPerPage = 10

type ReviewUsecase struct {
	reviews repo.ReviewRepository
	books   repo.BookRepository
	users   repo.UserRepository
}

// DI
func NewReviewUsecase(reviews repo.ReviewRepository, books repo.BookRepository, users repo.UserRepository) *ReviewUsecase {
	return &ReviewUsecase{reviews: reviews, books: books, users: users}
}

type ReviewInput struct {
	Rating int
	Text   string
}

func (in ReviewInput) validate() error {
	if in.Rating < 1 || in.Rating > 5 {
		return NewHTTPError(http.StatusBadRequest, "rating must be between 1 and 5")
	}
	if len(in.Text) > 5000 {
		return NewHTTPError(http.StatusBadRequest, "text too long")
	}
	return nil
}

type ReviewListOutput struct {
	Items   []model.Review      `json:"items"`
	Total   int64               `json:"total"`
	Page    int                 `json:"page"`
	Limit   int                 `json:"limit"`
	Summary model.RatingSummary `json:"summary"`
}

func (u *ReviewUsecase) ListByBook(ctx context.Context, bookSlug string, page int) (ReviewListOutput, error) {
	if page < 1 {
		return ReviewListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	b, err := u.publishedBook(ctx, bookSlug)
	if err != nil {
		return ReviewListOutput{}, err
	}

	items, total, err := u.reviews.ListByBook(ctx, b.ID, page, reviewsPerPage)
	if err != nil {
		return ReviewListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	summary, err := u.reviews.Summary(ctx, b.ID)
	if err != nil {
		return ReviewListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return ReviewListOutput{
		Items:   items,
		Total:   total,
		Page:    page,
		Limit:   reviewsPerPage,
		Summary: summary,
	}, nil
}

// 1ユーザー1書籍1件。2件目は409
func (u *ReviewUsecase) Create(ctx context.Context, userID int64, bookSlug string, in ReviewInput) (model.Review, error) {
	if userID <= 0 {
		return model.Review{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := in.validate(); err != nil {
		return model.Review{}, err
	}
	b, err := u.publishedBook(ctx, bookSlug)
	if err != nil {
		return model.Review{}, err
	}

	created, err := u.reviews.Create(ctx, model.Review{
		BookID: b.ID,
		UserID: userID,
		Rating: in.Rating,
		Text:   strings.TrimSpace(in.Text),
	})
	if errors.Is(err, repo.ErrConflict) {
		return model.Review{}, NewHTTPError(http.StatusConflict, "you have already reviewed this book")
	}
	if err != nil {
		return model.Review{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if user, err := u.users.FindByID(ctx, userID); err == nil {
		created.Username = user.Username
	}
	return created, nil
}

// 本人か管理者のみ
func (u *ReviewUsecase) Update(ctx context.Context, userID int64, role string, reviewID int64, in ReviewInput) (model.Review, error) {
	if err := in.validate(); err != nil {
		return model.Review{}, err
	}
	r, err := u.ownedReview(ctx, userID, role, reviewID)
	if err != nil {
		return model.Review{}, err
	}

	r.Rating = in.Rating
	r.Text = strings.TrimSpace(in.Text)
	if err := u.reviews.Update(ctx, r); err != nil {
		return model.Review{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return r, nil
}

func (u *ReviewUsecase) Delete(ctx context.Context, userID int64, role string, reviewID int64) error {
	if _, err := u.ownedReview(ctx, userID, role, reviewID); err != nil {
		return err
	}
	if err := u.reviews.Delete(ctx, reviewID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "review not found")
		}
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

func (u *ReviewUsecase) publishedBook(ctx context.Context, bookSlug string) (model.Book, error) {
	b, err := u.books.FindBySlug(ctx, bookSlug)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !b.IsPublished) {
		return model.Book{}, NewHTTPError(http.StatusNotFound, "book not found")
	}
	if err != nil {
		return model.Book{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return b, nil
}

func (u *ReviewUsecase) ownedReview(ctx context.Context, userID int64, role string, reviewID int64) (model.Review, error) {
	if userID <= 0 {
		return model.Review{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if reviewID <= 0 {
		return model.Review{}, NewHTTPError(http.StatusBadRequest, "invalid review id")
	}

	r, err := u.reviews.FindByID(ctx, reviewID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Review{}, NewHTTPError(http.StatusNotFound, "review not found")
	}
	if err != nil {
		return model.Review{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if r.UserID != userID && role != string(model.RoleAdmin) {
		return model.Review{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	return r, nil
}

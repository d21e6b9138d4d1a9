package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"bookstore/internal/cache"
	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	searchCachePrefix = "search:"
	searchLimit       = 50
	maxSlugAttempts   = 100
)

// 新刊を購読者に知らせる（非同期）
type BookNotifier interface {
	Enqueue(book model.Book) bool
}

type BookUsecase struct {
	books       repo.BookRepository
	genres      repo.GenreRepository
	reviews     repo.ReviewRepository
	auditRepo   repo.AuditLogRepository
	tx          repo.TransactionManager
	searchCache *cache.TTLCache[[]model.Book]
	notifier    BookNotifier
	log         *zap.Logger
}

// DI
func NewBookUsecase(
	books repo.BookRepository,
	genres repo.GenreRepository,
	reviews repo.ReviewRepository,
	auditRepo repo.AuditLogRepository,
	tx repo.TransactionManager,
	searchCache *cache.TTLCache[[]model.Book],
	notifier BookNotifier,
	log *zap.Logger,
) *BookUsecase {
	return &BookUsecase{
		books:       books,
		genres:      genres,
		reviews:     reviews,
		auditRepo:   auditRepo,
		tx:          tx,
		searchCache: searchCache,
		notifier:    notifier,
		log:         log,
	}
}

// 一覧・詳細で返す形。実売価格などの計算値を足す
type BookDTO struct {
	model.Book
	EffectivePrice     decimal.Decimal `json:"effective_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	InStock            bool            `json:"in_stock"`
}

type BookDetailDTO struct {
	BookDTO
	Rating model.RatingSummary `json:"rating"`
}

func toBookDTO(b model.Book) BookDTO {
	return BookDTO{
		Book:               b,
		EffectivePrice:     b.EffectivePrice(),
		DiscountPercentage: b.DiscountPercentage(),
		InStock:            b.InStock(),
	}
}

func toBookDTOs(books []model.Book) []BookDTO {
	out := make([]BookDTO, 0, len(books))
	for _, b := range books {
		out = append(out, toBookDTO(b))
	}
	return out
}

// GET /booksの入力DTO
type ListBooksInput struct {
	Page           int
	Limit          int
	GenreID        *int64
	MinPrice       *decimal.Decimal
	MaxPrice       *decimal.Decimal
	DiscountedOnly bool
	Sort           string
}

type BookListOutput struct {
	Items []BookDTO `json:"items"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

func (u *BookUsecase) ListBooks(ctx context.Context, in ListBooksInput) (BookListOutput, error) {
	if in.Page < 1 {
		return BookListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return BookListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if in.MinPrice != nil && in.MinPrice.IsNegative() {
		return BookListOutput{}, NewHTTPError(http.StatusBadRequest, "min_price must be >= 0")
	}
	if in.MaxPrice != nil && in.MaxPrice.IsNegative() {
		return BookListOutput{}, NewHTTPError(http.StatusBadRequest, "max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && in.MinPrice.GreaterThan(*in.MaxPrice) {
		return BookListOutput{}, NewHTTPError(http.StatusBadRequest, "min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "newest", "title", "price_asc", "price_desc":
	default:
		return BookListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid sort")
	}

	if in.GenreID != nil {
		if _, err := u.genres.FindByID(ctx, *in.GenreID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return BookListOutput{}, NewHTTPError(http.StatusNotFound, "genre not found")
			}
			return BookListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
	}

	items, total, err := u.books.ListPublished(ctx, repo.BookListQuery{
		GenreID:        in.GenreID,
		MinPrice:       in.MinPrice,
		MaxPrice:       in.MaxPrice,
		DiscountedOnly: in.DiscountedOnly,
		Sort:           in.Sort,
		Page:           in.Page,
		Limit:          in.Limit,
	})
	if err != nil {
		return BookListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return BookListOutput{
		Items: toBookDTOs(items),
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

// タイトル/著者で検索。結果はしばらくキャッシュする
func (u *BookUsecase) SearchBooks(ctx context.Context, q string) ([]BookDTO, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return []BookDTO{}, nil
	}
	if len(q) > 100 {
		return nil, NewHTTPError(http.StatusBadRequest, "q too long")
	}

	books, err := u.searchCache.GetOrLoad(ctx, searchCachePrefix+q, func(ctx context.Context) ([]model.Book, error) {
		return u.books.Search(ctx, q, searchLimit)
	})
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return toBookDTOs(books), nil
}

func (u *BookUsecase) GetBookDetail(ctx context.Context, slugValue string) (BookDetailDTO, error) {
	b, err := u.books.FindBySlug(ctx, slugValue)
	if errors.Is(err, repo.ErrNotFound) {
		return BookDetailDTO{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return BookDetailDTO{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !b.IsPublished {
		return BookDetailDTO{}, NewHTTPError(http.StatusNotFound, "not found")
	}

	summary, err := u.reviews.Summary(ctx, b.ID)
	if err != nil {
		return BookDetailDTO{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return BookDetailDTO{BookDTO: toBookDTO(b), Rating: summary}, nil
}

func (u *BookUsecase) ListGenres(ctx context.Context) ([]model.Genre, error) {
	genres, err := u.genres.List(ctx)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return genres, nil
}

// 管理画面からの作成・更新の入力
type BookInput struct {
	Title           string
	Description     string
	Author          string
	Price           decimal.Decimal
	DiscountedPrice *decimal.Decimal
	ISBN            string
	Pages           *int
	PublicationYear *int
	StockQuantity   int64
	IsPublished     bool
	GenreIDs        []int64
}

func (in BookInput) validate() error {
	if strings.TrimSpace(in.Title) == "" || len(in.Title) > 75 {
		return NewHTTPError(http.StatusBadRequest, "invalid title")
	}
	if strings.TrimSpace(in.Author) == "" || len(in.Author) > 100 {
		return NewHTTPError(http.StatusBadRequest, "invalid author")
	}
	if !in.Price.IsPositive() {
		return NewHTTPError(http.StatusBadRequest, "price must be > 0")
	}
	if in.DiscountedPrice != nil {
		if in.DiscountedPrice.IsNegative() || !in.DiscountedPrice.LessThan(in.Price) {
			return NewHTTPError(http.StatusBadRequest, "discounted_price must be less than price")
		}
	}
	if in.StockQuantity < 0 {
		return NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}
	if in.Pages != nil && *in.Pages <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid pages")
	}
	return nil
}

func (in BookInput) apply(b *model.Book) {
	b.Title = strings.TrimSpace(in.Title)
	b.Description = in.Description
	b.Author = strings.TrimSpace(in.Author)
	b.Price = in.Price.Round(2)
	b.DiscountedPrice = decimal.NullDecimal{}
	if in.DiscountedPrice != nil {
		b.DiscountedPrice = decimal.NewNullDecimal(in.DiscountedPrice.Round(2))
	}
	b.ISBN = strings.TrimSpace(in.ISBN)
	b.Pages = in.Pages
	b.PublicationYear = in.PublicationYear
	b.StockQuantity = in.StockQuantity
	b.IsPublished = in.IsPublished
}

func (u *BookUsecase) AdminCreateBook(ctx context.Context, adminUserID int64, in BookInput) (BookDTO, error) {
	if adminUserID <= 0 {
		return BookDTO{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := in.validate(); err != nil {
		return BookDTO{}, err
	}

	var created model.Book
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		genres, err := loadGenres(ctx, r, in.GenreIDs)
		if err != nil {
			return err
		}

		var b model.Book
		in.apply(&b)
		b.Genres = genres

		b.Slug, err = uniqueSlug(ctx, r.Books(), b.Title)
		if err != nil {
			return err
		}

		created, err = r.Books().Create(ctx, b)
		if err != nil {
			return err
		}

		return r.AuditLogs().Record(ctx,
			model.NewAuditLog(adminUserID, model.AuditActionCreateBook, model.AuditResourceBook, created.ID, nil, created))
	})
	if err != nil {
		return BookDTO{}, toCatalogHTTPError(err)
	}

	u.invalidateSearch()
	if created.IsPublished && u.notifier != nil {
		u.notifier.Enqueue(created)
	}
	return toBookDTO(created), nil
}

func (u *BookUsecase) AdminUpdateBook(ctx context.Context, adminUserID int64, bookID int64, in BookInput) (BookDTO, error) {
	if adminUserID <= 0 {
		return BookDTO{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if bookID <= 0 {
		return BookDTO{}, NewHTTPError(http.StatusBadRequest, "invalid book id")
	}
	if err := in.validate(); err != nil {
		return BookDTO{}, err
	}

	var updated model.Book
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Books().LockByID(ctx, bookID)
		if err != nil {
			return err
		}
		genres, err := loadGenres(ctx, r, in.GenreIDs)
		if err != nil {
			return err
		}

		updated = before
		in.apply(&updated)
		updated.Genres = genres

		if err := r.Books().Update(ctx, updated); err != nil {
			return err
		}

		return r.AuditLogs().Record(ctx,
			model.NewAuditLog(adminUserID, model.AuditActionUpdateBook, model.AuditResourceBook, bookID, before, updated))
	})
	if err != nil {
		return BookDTO{}, toCatalogHTTPError(err)
	}

	u.invalidateSearch()
	return toBookDTO(updated), nil
}

func (u *BookUsecase) AdminDeleteBook(ctx context.Context, adminUserID int64, bookID int64) error {
	if adminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if bookID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid book id")
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Books().LockByID(ctx, bookID)
		if err != nil {
			return err
		}
		if err := r.Books().SoftDelete(ctx, bookID); err != nil {
			return err
		}
		return r.AuditLogs().Record(ctx,
			model.NewAuditLog(adminUserID, model.AuditActionDeleteBook, model.AuditResourceBook, bookID, before, nil))
	})
	if err != nil {
		return toCatalogHTTPError(err)
	}

	u.invalidateSearch()
	return nil
}

// 在庫を「現在値」に更新し、調整履歴と監査ログも残す
func (u *BookUsecase) AdminUpdateInventory(ctx context.Context, adminUserID int64, bookID int64, newStock int64, reason string) error {
	if adminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if bookID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid book id")
	}
	if newStock < 0 {
		return NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}
	if strings.TrimSpace(reason) == "" {
		return NewHTTPError(http.StatusBadRequest, "reason required")
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		b, err := r.Books().LockByID(ctx, bookID)
		if err != nil {
			return err
		}

		adj := &model.InventoryAdjustment{
			BookID:      bookID,
			ActorUserID: adminUserID,
			StockBefore: b.StockQuantity,
			StockAfter:  newStock,
			Reason:      strings.TrimSpace(reason),
		}
		if err := r.Inventory().Apply(ctx, adj); err != nil {
			return err
		}

		type stock struct {
			Stock int64 `json:"stock"`
		}
		return r.AuditLogs().Record(ctx, model.NewAuditLog(adminUserID, model.AuditActionUpdateStock, model.AuditResourceBook, bookID,
			stock{adj.StockBefore}, stock{adj.StockAfter}))
	})
	if err != nil {
		return toCatalogHTTPError(err)
	}

	u.invalidateSearch()
	return nil
}

func (u *BookUsecase) AdminCreateGenre(ctx context.Context, adminUserID int64, name string, description string) (model.Genre, error) {
	if adminUserID <= 0 {
		return model.Genre{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 200 {
		return model.Genre{}, NewHTTPError(http.StatusBadRequest, "invalid name")
	}

	var created model.Genre
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		created, err = r.Genres().Create(ctx, model.Genre{Name: name, Description: description})
		if err != nil {
			return err
		}
		return r.AuditLogs().Record(ctx,
			model.NewAuditLog(adminUserID, model.AuditActionCreateGenre, model.AuditResourceGenre, created.ID, nil, created))
	})
	if err != nil {
		return model.Genre{}, toCatalogHTTPError(err)
	}
	return created, nil
}

func (u *BookUsecase) ListAuditLogs(ctx context.Context, q repo.AuditLogQuery) (repo.AuditLogPage, error) {
	page, err := u.auditRepo.List(ctx, q)
	if err != nil {
		return repo.AuditLogPage{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return page, nil
}

func (u *BookUsecase) invalidateSearch() {
	n := u.searchCache.DeletePrefix(searchCachePrefix)
	if n > 0 {
		u.log.Debug("search cache invalidated", zap.Int("entries", n))
	}
}

func loadGenres(ctx context.Context, r repo.TxRepos, ids []int64) ([]model.Genre, error) {
	genres, err := r.Genres().FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(genres) != len(uniqueIDs(ids)) {
		return nil, NewHTTPError(http.StatusBadRequest, "unknown genre")
	}
	return genres, nil
}

func uniqueIDs(ids []int64) map[int64]struct{} {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

// タイトルからslugを作る。使われていれば -2, -3 ... を付ける
func uniqueSlug(ctx context.Context, books repo.BookRepository, title string) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = "book"
	}

	candidate := base
	for i := 2; i <= maxSlugAttempts; i++ {
		exists, err := books.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", NewHTTPError(http.StatusConflict, "slug already taken")
}

func toCatalogHTTPError(err error) error {
	if _, ok := AsHTTPError(err); ok {
		return err
	}
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if errors.Is(err, repo.ErrConflict) {
		return WrapHTTPError(http.StatusConflict, "already exists", err)
	}
	return WrapHTTPError(http.StatusInternalServerError, "db error", err)
}

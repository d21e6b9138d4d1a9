package repository

import (
	"context"
	"strings"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BookGormRepository struct {
	db *gorm.DB
}

// DI
func NewBookGormRepository(db *gorm.DB) *BookGormRepository {
	return &BookGormRepository{db: db}
}

// 公開済みの本を、ジャンル/価格帯/割引/ソート/ページング付きで返す。
func (r *BookGormRepository) ListPublished(ctx context.Context, q repo.BookListQuery) ([]model.Book, int64, error) {
	var books []model.Book
	var total int64

	tx := r.db.WithContext(ctx).Model(&model.Book{}).
		Where("books.is_published = ?", true)

	if q.GenreID != nil {
		tx = tx.Where("books.id IN (?)",
			r.db.Table("book_genres").Select("book_id").Where("genre_id = ?", *q.GenreID))
	}

	//価格帯
	if q.MinPrice != nil {
		tx = tx.Where("books.price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		tx = tx.Where("books.price <= ?", *q.MaxPrice)
	}
	if q.DiscountedOnly {
		tx = tx.Where("books.discounted_price IS NOT NULL AND books.discounted_price < books.price")
	}

	//total（件数）
	if err := tx.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return []model.Book{}, 0, translateError(err)
	}

	//sort
	switch q.Sort {
	case "price_asc":
		tx = tx.Order("books.price asc").Order("books.id asc")
	case "price_desc":
		tx = tx.Order("books.price desc").Order("books.id desc")
	case "title":
		tx = tx.Order("books.title asc").Order("books.id asc")
	default:
		tx = tx.Order("books.created_at desc").Order("books.id desc")
	}

	offset := (q.Page - 1) * q.Limit
	if err := tx.Preload("Genres").Offset(offset).Limit(q.Limit).Find(&books).Error; err != nil {
		return []model.Book{}, 0, translateError(err)
	}

	return books, total, nil
}

// タイトルか著者の部分一致（大文字小文字は区別しない）
func (r *BookGormRepository) Search(ctx context.Context, query string, limit int) ([]model.Book, error) {
	var books []model.Book

	like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	err := r.db.WithContext(ctx).
		Where("is_published = ?", true).
		Where("LOWER(title) LIKE ? OR LOWER(author) LIKE ?", like, like).
		Order("title asc").
		Limit(limit).
		Find(&books).Error
	if err != nil {
		return []model.Book{}, translateError(err)
	}
	return books, nil
}

func (r *BookGormRepository) FindBySlug(ctx context.Context, slug string) (model.Book, error) {
	var b model.Book
	err := r.db.WithContext(ctx).
		Preload("Genres").
		Where("slug = ?", slug).
		First(&b).Error
	if err != nil {
		return model.Book{}, translateError(err)
	}
	return b, nil
}

// IDで本を取得
func (r *BookGormRepository) FindByID(ctx context.Context, id int64) (model.Book, error) {
	var b model.Book
	if err := r.db.WithContext(ctx).Preload("Genres").First(&b, id).Error; err != nil {
		return model.Book{}, translateError(err)
	}
	return b, nil
}

func (r *BookGormRepository) FindByIDs(ctx context.Context, ids []int64) ([]model.Book, error) {
	if len(ids) == 0 {
		return []model.Book{}, nil
	}
	var books []model.Book
	if err := r.db.WithContext(ctx).Unscoped().Where("id IN ?", ids).Find(&books).Error; err != nil {
		return []model.Book{}, translateError(err)
	}
	return books, nil
}

// 在庫を変えるときの行ロック
func (r *BookGormRepository) LockByID(ctx context.Context, id int64) (model.Book, error) {
	var b model.Book
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&b, id).Error
	if err != nil {
		return model.Book{}, translateError(err)
	}
	return b, nil
}

func (r *BookGormRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Unscoped().
		Model(&model.Book{}).
		Where("slug = ?", slug).
		Count(&count).Error
	if err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

// 本の作成（ジャンルの紐付けも）
func (r *BookGormRepository) Create(ctx context.Context, b model.Book) (model.Book, error) {
	if err := r.db.WithContext(ctx).Omit("Genres.*").Create(&b).Error; err != nil {
		return model.Book{}, translateError(err)
	}
	return b, nil
}

// 本の更新。ジャンルは置き換え
func (r *BookGormRepository) Update(ctx context.Context, b model.Book) error {
	res := r.db.WithContext(ctx).Model(&model.Book{}).Where("id = ?", b.ID).Updates(map[string]any{
		"title":            b.Title,
		"slug":             b.Slug,
		"description":      b.Description,
		"author":           b.Author,
		"price":            b.Price,
		"discounted_price": b.DiscountedPrice,
		"isbn":             b.ISBN,
		"pages":            b.Pages,
		"publication_year": b.PublicationYear,
		"stock_quantity":   b.StockQuantity,
		"is_published":     b.IsPublished,
	})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}

	target := model.Book{ID: b.ID}
	if err := r.db.WithContext(ctx).Model(&target).Omit("Genres.*").Association("Genres").Replace(b.Genres); err != nil {
		return translateError(err)
	}
	return nil
}

// 本の削除（論理削除）
func (r *BookGormRepository) SoftDelete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.Book{}, id)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

type GenreGormRepository struct {
	db *gorm.DB
}

// DI
func NewGenreGormRepository(db *gorm.DB) *GenreGormRepository {
	return &GenreGormRepository{db: db}
}

func (r *GenreGormRepository) List(ctx context.Context) ([]model.Genre, error) {
	var genres []model.Genre
	if err := r.db.WithContext(ctx).Order("name asc").Find(&genres).Error; err != nil {
		return []model.Genre{}, translateError(err)
	}
	return genres, nil
}

func (r *GenreGormRepository) FindByID(ctx context.Context, id int64) (model.Genre, error) {
	var g model.Genre
	if err := r.db.WithContext(ctx).First(&g, id).Error; err != nil {
		return model.Genre{}, translateError(err)
	}
	return g, nil
}

func (r *GenreGormRepository) FindByIDs(ctx context.Context, ids []int64) ([]model.Genre, error) {
	if len(ids) == 0 {
		return []model.Genre{}, nil
	}
	var genres []model.Genre
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id asc").Find(&genres).Error; err != nil {
		return []model.Genre{}, translateError(err)
	}
	return genres, nil
}

// 同名ジャンルは ErrConflict
func (r *GenreGormRepository) Create(ctx context.Context, g model.Genre) (model.Genre, error) {
	if err := r.db.WithContext(ctx).Create(&g).Error; err != nil {
		return model.Genre{}, translateError(err)
	}
	return g, nil
}

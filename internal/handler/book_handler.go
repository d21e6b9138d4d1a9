package handler

import (
	"net/http"
	"strconv"

	"bookstore/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// /books, /genres の公開API
type BookHandler struct {
	uc *usecase.BookUsecase
}

// DI
func NewBookHandler(uc *usecase.BookUsecase) *BookHandler {
	return &BookHandler{uc: uc}
}

// 公開のルートを登録
func (h *BookHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/books", h.list)
	e.GET("/books/discounted", h.discounted)
	e.GET("/books/search", h.search)
	e.GET("/books/:slug", h.detail)
	e.GET("/genres", h.genres)
	e.GET("/genres/:id/books", h.byGenre)
}

func (h *BookHandler) list(c echo.Context) error {
	in, ok, err := parseListQuery(c)
	if !ok {
		return err
	}

	if v := c.QueryParam("genre"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid genre"})
		}
		in.GenreID = &id
	}

	out, err := h.uc.ListBooks(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *BookHandler) discounted(c echo.Context) error {
	in, ok, err := parseListQuery(c)
	if !ok {
		return err
	}
	in.DiscountedOnly = true

	out, err := h.uc.ListBooks(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *BookHandler) search(c echo.Context) error {
	out, err := h.uc.SearchBooks(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *BookHandler) detail(c echo.Context) error {
	out, err := h.uc.GetBookDetail(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *BookHandler) genres(c echo.Context) error {
	out, err := h.uc.ListGenres(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *BookHandler) byGenre(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	in, ok, err := parseListQuery(c)
	if !ok {
		return err
	}
	in.GenreID = &id

	out, err := h.uc.ListBooks(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// page（default 1）, limit（default 20）, sort, min_price, max_price
func parseListQuery(c echo.Context) (usecase.ListBooksInput, bool, error) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return usecase.ListBooksInput{}, false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page"})
	}
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		return usecase.ListBooksInput{}, false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
	}

	in := usecase.ListBooksInput{
		Page:  page,
		Limit: limit,
		Sort:  c.QueryParam("sort"),
	}

	if v := c.QueryParam("min_price"); v != "" {
		x, err := decimal.NewFromString(v)
		if err != nil {
			return usecase.ListBooksInput{}, false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid min_price"})
		}
		in.MinPrice = &x
	}
	if v := c.QueryParam("max_price"); v != "" {
		x, err := decimal.NewFromString(v)
		if err != nil {
			return usecase.ListBooksInput{}, false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid max_price"})
		}
		in.MaxPrice = &x
	}

	return in, true, nil
}

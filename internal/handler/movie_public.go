package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinevault/internal/apperr"
	"github.com/iliyamo/cinevault/internal/model"
	"github.com/iliyamo/cinevault/internal/repository"
)

const (
	msgMoviesFetched = "Movies fetched successfully"
	msgNoMovies      = "No movies found"
)

// MovieReader is the read side of the catalog store.
type MovieReader interface {
	ListPage(ctx context.Context, limit int, cursor uint64) (model.MoviePage, error)
	ListSorted(ctx context.Context, fields []model.SortField) ([]model.Movie, error)
	Search(ctx context.Context, q string) ([]model.Movie, error)
}

// movieList is the data of the unpaginated reads; it shares the movies
// field with model.MoviePage.
type movieList struct {
	Movies []model.Movie `json:"movies"`
}

func listOf(movies []model.Movie) movieList {
	if movies == nil {
		movies = []model.Movie{}
	}
	return movieList{Movies: movies}
}

// MoviePublicHandler serves the unauthenticated catalog reads.
type MoviePublicHandler struct {
	Movies MovieReader
}

func NewMoviePublicHandler(movies MovieReader) *MoviePublicHandler {
	return &MoviePublicHandler{Movies: movies}
}

// List returns one page of the catalog, newest first. ?limit defaults to 10
// (max 100); ?cursor is the nextCursor of the previous page. A cursor that
// is not a positive integer is ignored and the first page is returned.
func (h *MoviePublicHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	cursor, err := strconv.ParseUint(c.QueryParam("cursor"), 10, 64)
	if err != nil {
		cursor = 0
	}

	page, err := h.Movies.ListPage(c.Request().Context(), repository.ClampLimit(limit), cursor)
	if err != nil {
		return apperr.Internal("Failed to fetch movies", err)
	}
	msg := msgMoviesFetched
	if len(page.Movies) == 0 {
		msg = msgNoMovies
	}
	return ok(c, msg, page)
}

// Sorted lists the catalog ordered by any of ?rating, ?releaseDate,
// ?duration and ?name. "asc" sorts ascending, any other value descending.
// Directives apply in that fixed precedence regardless of query order.
func (h *MoviePublicHandler) Sorted(c echo.Context) error {
	movies, err := h.Movies.ListSorted(c.Request().Context(), sortFields(c))
	if err != nil {
		return apperr.Internal("Failed to fetch movies", err)
	}
	msg := msgMoviesFetched
	if len(movies) == 0 {
		msg = msgNoMovies
	}
	return ok(c, msg, listOf(movies))
}

func sortFields(c echo.Context) []model.SortField {
	var fields []model.SortField
	for _, key := range model.SortKeys {
		dir := strings.TrimSpace(c.QueryParam(string(key)))
		if dir == "" {
			continue
		}
		fields = append(fields, model.SortField{Key: key, Desc: !strings.EqualFold(dir, "asc")})
	}
	return fields
}

// Search runs a relevance search over title and description.
func (h *MoviePublicHandler) Search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return apperr.Validation("Search query is required")
	}
	movies, err := h.Movies.Search(c.Request().Context(), q)
	if err != nil {
		return apperr.Internal("Failed to search movies", err)
	}
	if len(movies) == 0 {
		return ok(c, msgNoMovies, listOf(movies))
	}
	return ok(c, msgMoviesFetched, listOf(movies))
}

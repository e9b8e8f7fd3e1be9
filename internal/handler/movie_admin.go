package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinevault/internal/apperr"
	"github.com/iliyamo/cinevault/internal/middleware"
	"github.com/iliyamo/cinevault/internal/service"
)

// MovieAdminHandler serves the ADMIN catalog writes. Routes must sit behind
// Authenticate and RequireRole so the role check precedes body parsing.
type MovieAdminHandler struct {
	Movies    *service.MovieService
	UploadDir string
}

func NewMovieAdminHandler(movies *service.MovieService, uploadDir string) *MovieAdminHandler {
	return &MovieAdminHandler{Movies: movies, UploadDir: uploadDir}
}

// Create queues a new movie and answers 202 with the job receipt.
func (h *MovieAdminHandler) Create(c echo.Context) error {
	u, found := middleware.CurrentUser(c)
	if !found {
		return apperr.Auth("Unauthorized request")
	}
	fields, upload, err := readMovieForm(c, h.UploadDir)
	if err != nil {
		return err
	}
	receipt, err := h.Movies.Create(c.Request().Context(), fields, upload, u.ID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusAccepted, "Movie queued for creation", receipt)
}

// Edit applies a partial update (PATCH or PUT). A missing movie is reported
// before the body is read.
func (h *MovieAdminHandler) Edit(c echo.Context) error {
	id, err := movieID(c)
	if err != nil {
		return err
	}
	if _, err := h.Movies.Get(c.Request().Context(), id); err != nil {
		return err
	}
	fields, upload, err := readMovieForm(c, h.UploadDir)
	if err != nil {
		return err
	}
	m, err := h.Movies.Edit(c.Request().Context(), id, fields, upload)
	if err != nil {
		return err
	}
	return ok(c, "Movie updated successfully", m)
}

func (h *MovieAdminHandler) Delete(c echo.Context) error {
	id, err := movieID(c)
	if err != nil {
		return err
	}
	if err := h.Movies.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return ok(c, "Movie deleted successfully", nil)
}

func movieID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("Invalid movie id")
	}
	return id, nil
}

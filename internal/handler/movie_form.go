package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinevault/internal/apperr"
	"github.com/iliyamo/cinevault/internal/service"
)

// posterField is the multipart part that carries the poster image.
const posterField = "poster"

var movieFieldNames = []string{"title", "description", "posterUrl", "rating", "releaseDate", "duration"}

// readMovieForm reads the movie fields from a multipart, urlencoded or
// JSON body. When a poster file is attached it is saved under uploadDir and
// returned; the caller owns its removal.
func readMovieForm(c echo.Context, uploadDir string) (service.MovieFields, *service.Upload, error) {
	ctype, _, _ := mime.ParseMediaType(c.Request().Header.Get(echo.HeaderContentType))
	switch ctype {
	case echo.MIMEMultipartForm:
		form, err := c.MultipartForm()
		if err != nil {
			return service.MovieFields{}, nil, apperr.Validation("Invalid multipart body")
		}
		f := fieldsFromValues(form.Value)
		files := form.File[posterField]
		if len(files) == 0 {
			return f, nil, nil
		}
		up, err := saveUpload(files[0], uploadDir)
		return f, up, err
	case echo.MIMEApplicationForm:
		vals, err := c.FormParams()
		if err != nil {
			return service.MovieFields{}, nil, apperr.Validation("Invalid form body")
		}
		return fieldsFromValues(vals), nil, nil
	case echo.MIMEApplicationJSON:
		f, err := fieldsFromJSON(c.Request().Body)
		return f, nil, err
	case "":
		if c.Request().ContentLength == 0 {
			return service.MovieFields{}, nil, nil
		}
	}
	return service.MovieFields{}, nil, apperr.Validation("Unsupported content type")
}

func fieldsFromValues(vals map[string][]string) service.MovieFields {
	get := func(name string) *string {
		v, ok := vals[name]
		if !ok || len(v) == 0 {
			return nil
		}
		s := v[0]
		return &s
	}
	f := service.MovieFields{
		Title:       get("title"),
		Description: get("description"),
		PosterURL:   get("posterUrl"),
		Rating:      get("rating"),
		ReleaseDate: get("releaseDate"),
		Duration:    get("duration"),
	}
	if g, ok := vals["genre"]; ok {
		f.Genre = expandGenre(g)
	} else if g, ok := vals["genre[]"]; ok {
		f.Genre = expandGenre(g)
	}
	return f
}

// expandGenre accepts repeated values, a JSON array in one value, or a
// comma separated string. Empty results stay non-nil so the field still
// counts as present.
func expandGenre(raw []string) []string {
	out := []string{}
	for _, v := range raw {
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "[") {
			var arr []string
			if json.Unmarshal([]byte(v), &arr) == nil {
				out = append(out, arr...)
				continue
			}
		}
		out = append(out, strings.Split(v, ",")...)
	}
	return out
}

func fieldsFromJSON(r io.Reader) (service.MovieFields, error) {
	var body map[string]any
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		if err == io.EOF {
			return service.MovieFields{}, nil
		}
		return service.MovieFields{}, apperr.Validation("Invalid JSON body")
	}

	vals := make(map[string][]string, len(body))
	for _, name := range movieFieldNames {
		if v, ok := body[name]; ok && v != nil {
			vals[name] = []string{scalar(v)}
		}
	}
	f := fieldsFromValues(vals)

	switch g := body["genre"].(type) {
	case string:
		f.Genre = expandGenre([]string{g})
	case []any:
		f.Genre = make([]string, 0, len(g))
		for _, item := range g {
			f.Genre = append(f.Genre, scalar(item))
		}
	}
	return f, nil
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// saveUpload copies an image part to uploadDir under a random name.
func saveUpload(fh *multipart.FileHeader, uploadDir string) (*service.Upload, error) {
	if !strings.HasPrefix(fh.Header.Get(echo.HeaderContentType), "image/") {
		return nil, apperr.Validation("Only image files are allowed")
	}
	src, err := fh.Open()
	if err != nil {
		return nil, apperr.Validation("Could not read uploaded file")
	}
	defer src.Close()

	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, apperr.Internal("Failed to store upload", err)
	}
	path := filepath.Join(uploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
	dst, err := os.Create(path)
	if err != nil {
		return nil, apperr.Internal("Failed to store upload", err)
	}
	up := &service.Upload{Path: path, Filename: fh.Filename}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = up.Discard()
		return nil, apperr.Internal("Failed to store upload", err)
	}
	if err := dst.Close(); err != nil {
		_ = up.Discard()
		return nil, apperr.Internal("Failed to store upload", err)
	}
	return up, nil
}

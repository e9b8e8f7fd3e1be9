package service

import (
	"errors"
	"io/fs"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/cinevault/internal/apperr"
	"github.com/iliyamo/cinevault/internal/model"
)

// MovieFields holds the create/edit form exactly as received. A nil
// pointer means the field was absent; Genre is nil when absent and
// otherwise holds every submitted value (repeated fields, JSON array
// elements, or one comma-separated string).
type MovieFields struct {
	Title       *string
	Description *string
	PosterURL   *string
	Rating      *string
	ReleaseDate *string
	Duration    *string
	Genre       []string
}

// Upload is a poster file saved to local disk by the HTTP layer.
type Upload struct {
	Path     string
	Filename string
}

// Discard removes the temp file; a missing file is fine.
func (u *Upload) Discard() error {
	if u == nil || u.Path == "" {
		return nil
	}
	if err := os.Remove(u.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

const (
	msgRequired    = "Title, rating, release date, and duration are required"
	msgPoster      = "Poster image or poster URL is required"
	msgPosterURL   = "Poster URL must be an absolute http(s) URL"
	msgRating      = "Rating must be a number between 0 and 10"
	msgDuration    = "Duration must be a positive whole number of minutes"
	msgReleaseDate = "Release date must be a valid date (YYYY-MM-DD)"
	msgTitle       = "Title cannot be empty"
	msgEmptyPatch  = "At least one field is required to update a movie"
)

func present(p *string) bool { return p != nil && strings.TrimSpace(*p) != "" }

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// ValidateCreate checks a create request and returns the movie to insert.
// Checks run in a fixed order and the first failure is returned: required
// fields, poster availability, genre normalization, rating, duration,
// release date. The returned movie's PosterURL is the submitted URL; the
// caller replaces it when a file is staged.
func ValidateCreate(f MovieFields, hasFile bool) (model.Movie, error) {
	var missing []string
	for _, req := range []struct {
		name string
		v    *string
	}{{"title", f.Title}, {"rating", f.Rating}, {"releaseDate", f.ReleaseDate}, {"duration", f.Duration}} {
		if !present(req.v) {
			missing = append(missing, req.name+" is required")
		}
	}
	if len(missing) > 0 {
		return model.Movie{}, apperr.Validation(msgRequired, missing...)
	}

	posterURL := trimmed(f.PosterURL)
	if !hasFile && posterURL == "" {
		return model.Movie{}, apperr.Validation(msgPoster)
	}
	if !hasFile {
		if err := checkPosterURL(posterURL); err != nil {
			return model.Movie{}, err
		}
	}

	genre := NormalizeGenre(f.Genre)

	rating, err := parseRating(*f.Rating)
	if err != nil {
		return model.Movie{}, err
	}
	duration, err := parseDuration(*f.Duration)
	if err != nil {
		return model.Movie{}, err
	}
	release, err := ParseReleaseDate(*f.ReleaseDate)
	if err != nil {
		return model.Movie{}, err
	}

	m := model.Movie{
		Title:       trimmed(f.Title),
		Description: trimmed(f.Description),
		Rating:      rating,
		ReleaseDate: release,
		Duration:    duration,
		Genre:       genre,
	}
	if !hasFile {
		m.PosterURL = posterURL
	}
	return m, nil
}

// ValidatePatch checks the fields present in an edit request. An edit
// that carries neither a field nor a file is rejected.
func ValidatePatch(f MovieFields, hasFile bool) (model.MoviePatch, error) {
	var p model.MoviePatch
	if f.Title != nil {
		t := trimmed(f.Title)
		if t == "" {
			return p, apperr.Validation(msgTitle)
		}
		p.Title = &t
	}
	if f.Description != nil {
		d := trimmed(f.Description)
		p.Description = &d
	}
	if f.PosterURL != nil && !hasFile {
		u := trimmed(f.PosterURL)
		if err := checkPosterURL(u); err != nil {
			return p, err
		}
		p.PosterURL = &u
	}
	if f.Genre != nil {
		p.Genre = NormalizeGenre(f.Genre)
	}
	if f.Rating != nil {
		r, err := parseRating(*f.Rating)
		if err != nil {
			return p, err
		}
		p.Rating = &r
	}
	if f.Duration != nil {
		d, err := parseDuration(*f.Duration)
		if err != nil {
			return p, err
		}
		p.Duration = &d
	}
	if f.ReleaseDate != nil {
		d, err := ParseReleaseDate(*f.ReleaseDate)
		if err != nil {
			return p, err
		}
		p.ReleaseDate = &d
	}
	if p.Empty() && !hasFile {
		return p, apperr.Validation(msgEmptyPatch)
	}
	return p, nil
}

// NormalizeGenre splits comma-separated values, trims them, drops blanks
// and removes case-insensitive duplicates, keeping first spellings.
func NormalizeGenre(raw []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, v := range raw {
		for _, g := range strings.Split(v, ",") {
			g = strings.TrimSpace(g)
			k := strings.ToLower(g)
			if g == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, g)
		}
	}
	return out
}

// ParseReleaseDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseReleaseDate(s string) (model.Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(model.DateLayout, s); err == nil {
		return model.NewDate(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return model.NewDate(t.UTC()), nil
	}
	return model.Date{}, apperr.Validation(msgReleaseDate)
}

func parseRating(s string) (float64, error) {
	r, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(r) || r < 0 || r > 10 {
		return 0, apperr.Validation(msgRating)
	}
	return r, nil
}

func parseDuration(s string) (int, error) {
	d, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return 0, apperr.Validation(msgDuration)
	}
	return d, nil
}

func checkPosterURL(s string) error {
	u, err := url.ParseRequestURI(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.Validation(msgPosterURL)
	}
	return nil
}

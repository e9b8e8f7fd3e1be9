package repository

import (
	"strings"

	"github.com/iliyamo/cinevault/internal/model"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100

	// RelevanceFloor is the fraction of the best score a search hit must reach.
	RelevanceFloor = 0.45
)

// ClampLimit applies the listing default and cap.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

// sortColumns maps client sort keys to columns. Only keys listed here can
// reach an ORDER BY clause.
var sortColumns = map[model.SortKey]string{
	model.SortRating:      "rating",
	model.SortReleaseDate: "release_date",
	model.SortDuration:    "duration",
	model.SortName:        "title",
}

// OrderBy renders a compound ORDER BY clause, or "" when no known field
// was requested. Unknown keys are skipped.
func OrderBy(fields []model.SortField) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		col, ok := sortColumns[f.Key]
		if !ok {
			continue
		}
		dir := "ASC"
		if f.Desc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}
	if len(parts) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// ApplyRelevanceFloor keeps hits scoring at least floor times the best
// score. Input order is preserved; an empty input or a non-positive best
// score yields no hits.
func ApplyRelevanceFloor(movies []model.Movie, floor float64) []model.Movie {
	if len(movies) == 0 {
		return []model.Movie{}
	}
	best := movies[0].Score
	for _, m := range movies[1:] {
		if m.Score > best {
			best = m.Score
		}
	}
	if best <= 0 {
		return []model.Movie{}
	}
	cutoff := best * floor
	out := make([]model.Movie, 0, len(movies))
	for _, m := range movies {
		if m.Score >= cutoff {
			out = append(out, m)
		}
	}
	return out
}

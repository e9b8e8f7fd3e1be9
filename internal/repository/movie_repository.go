package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/cinevault/internal/model"
)

// MovieRepo is the catalog store.
type MovieRepo struct{ DB *sql.DB }

func NewMovieRepo(db *sql.DB) *MovieRepo { return &MovieRepo{DB: db} }

const movieColumns = "id,title,description,poster_url,rating,release_date,duration,genre,created_by,created_at,updated_at"

type rowScanner interface{ Scan(dest ...any) error }

func scanMovie(s rowScanner, extra ...any) (model.Movie, error) {
	var (
		m         model.Movie
		release   time.Time
		genre     []byte
		createdBy sql.NullInt64
	)
	dest := []any{&m.ID, &m.Title, &m.Description, &m.PosterURL, &m.Rating, &release,
		&m.Duration, &genre, &createdBy, &m.CreatedAt, &m.UpdatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return model.Movie{}, err
	}
	m.ReleaseDate = model.NewDate(release)
	if createdBy.Valid {
		id := uint64(createdBy.Int64)
		m.CreatedBy = &id
	}
	m.Genre = []string{}
	if len(genre) > 0 {
		if err := json.Unmarshal(genre, &m.Genre); err != nil {
			return model.Movie{}, fmt.Errorf("decode genre of movie %d: %w", m.ID, err)
		}
	}
	return m, nil
}

func encodeGenre(genre []string) (string, error) {
	if genre == nil {
		genre = []string{}
	}
	b, err := json.Marshal(genre)
	return string(b), err
}

// InsertIdempotent creates a movie keyed by key. When a row with the same
// key already exists (a redelivered job) nothing changes and that row's id
// is returned with created=false.
func (r *MovieRepo) InsertIdempotent(ctx context.Context, key string, m model.Movie) (uint64, bool, error) {
	genre, err := encodeGenre(m.Genre)
	if err != nil {
		return 0, false, err
	}
	var createdBy any
	if m.CreatedBy != nil {
		createdBy = *m.CreatedBy
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO movies (idempotency_key,title,description,poster_url,rating,release_date,duration,genre,created_by)
		 VALUES (?,?,?,?,?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE id=LAST_INSERT_ID(id)`,
		key, m.Title, m.Description, m.PosterURL, m.Rating, m.ReleaseDate.Time, m.Duration, genre, createdBy)
	if err != nil {
		return 0, false, fmt.Errorf("insert movie: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, err
	}
	// 1 = inserted; 0 = duplicate key with nothing to change.
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	return uint64(id), n == 1, nil
}

func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (model.Movie, error) {
	m, err := scanMovie(r.DB.QueryRowContext(ctx,
		"SELECT "+movieColumns+" FROM movies WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Movie{}, ErrMovieNotFound
	}
	if err != nil {
		return model.Movie{}, fmt.Errorf("get movie: %w", err)
	}
	return m, nil
}

// Update applies the non-nil fields of p and returns the stored row. When
// the UPDATE went through but the row could not be read back, the error
// wraps ErrUpdateCommitted.
func (r *MovieRepo) Update(ctx context.Context, id uint64, p model.MoviePatch) (model.Movie, error) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+"=?")
		args = append(args, v)
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.PosterURL != nil {
		add("poster_url", *p.PosterURL)
	}
	if p.Rating != nil {
		add("rating", *p.Rating)
	}
	if p.ReleaseDate != nil {
		add("release_date", p.ReleaseDate.Time)
	}
	if p.Duration != nil {
		add("duration", *p.Duration)
	}
	if p.Genre != nil {
		genre, err := encodeGenre(p.Genre)
		if err != nil {
			return model.Movie{}, err
		}
		add("genre", genre)
	}
	if len(sets) > 0 {
		args = append(args, id)
		if _, err := r.DB.ExecContext(ctx,
			"UPDATE movies SET "+strings.Join(sets, ",")+" WHERE id=?", args...); err != nil {
			return model.Movie{}, fmt.Errorf("update movie: %w", err)
		}
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	m, err := r.GetByID(context.WithoutCancel(ctx), id)
	if err != nil && !errors.Is(err, ErrMovieNotFound) {
		return model.Movie{}, fmt.Errorf("%w: %w", ErrUpdateCommitted, err)
	}
	return m, err
}

func (r *MovieRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM movies WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("delete movie: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMovieNotFound
	}
	return nil
}

// ListPage returns up to limit movies with ids strictly below cursor,
// newest first. A zero cursor starts from the newest movie.
func (r *MovieRepo) ListPage(ctx context.Context, limit int, cursor uint64) (model.MoviePage, error) {
	limit = ClampLimit(limit)
	query := "SELECT " + movieColumns + " FROM movies"
	args := []any{}
	if cursor > 0 {
		query += " WHERE id < ?"
		args = append(args, cursor)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit+1)

	movies, err := r.query(ctx, query, args...)
	if err != nil {
		return model.MoviePage{}, err
	}
	page := model.MoviePage{Movies: movies}
	if len(movies) > limit {
		page.Movies = movies[:limit]
		page.HasMore = true
		next := page.Movies[limit-1].ID
		page.NextCursor = &next
	}
	return page, nil
}

// ListSorted returns every movie ordered by the given fields.
func (r *MovieRepo) ListSorted(ctx context.Context, fields []model.SortField) ([]model.Movie, error) {
	return r.query(ctx, "SELECT "+movieColumns+" FROM movies"+OrderBy(fields))
}

// Search ranks movies by full-text relevance over title and description and
// drops hits below RelevanceFloor of the best score.
func (r *MovieRepo) Search(ctx context.Context, q string) ([]model.Movie, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+movieColumns+", MATCH(title,description) AGAINST (? IN NATURAL LANGUAGE MODE) AS score"+
			" FROM movies WHERE MATCH(title,description) AGAINST (? IN NATURAL LANGUAGE MODE)"+
			" ORDER BY score DESC", q, q)
	if err != nil {
		return nil, fmt.Errorf("search movies: %w", err)
	}
	defer rows.Close()

	out := []model.Movie{}
	for rows.Next() {
		var score float64
		m, err := scanMovie(rows, &score)
		if err != nil {
			return nil, err
		}
		m.Score = score
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ApplyRelevanceFloor(out, RelevanceFloor), nil
}

func (r *MovieRepo) query(ctx context.Context, query string, args ...any) ([]model.Movie, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	defer rows.Close()

	out := []model.Movie{}
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinevault/internal/model"
)

var movieCols = []string{"id", "title", "description", "poster_url", "rating", "release_date",
	"duration", "genre", "created_by", "created_at", "updated_at"}

func newMovieRepo(t *testing.T) (*MovieRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMovieRepo(db), mock
}

func movieRow(rows *sqlmock.Rows, id uint64, title string) *sqlmock.Rows {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	release := time.Date(2010, 7, 16, 0, 0, 0, 0, time.UTC)
	return rows.AddRow(id, title, "A thief who steals secrets.", "https://res.cloudinary.com/demo/image/upload/v1/cinevault/images/p.jpg",
		8.8, release, 148, []byte(`["Sci-Fi","Thriller"]`), int64(1), now, now)
}

func TestListPageFirstPageHasCursor(t *testing.T) {
	repo, mock := newMovieRepo(t)

	rows := sqlmock.NewRows(movieCols)
	for _, id := range []uint64{5, 4, 3} {
		movieRow(rows, id, "Movie")
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM movies ORDER BY id DESC LIMIT ?")).
		WithArgs(3).WillReturnRows(rows)

	page, err := repo.ListPage(context.Background(), 2, 0)
	require.NoError(t, err)
	require.Len(t, page.Movies, 2)
	assert.Equal(t, uint64(5), page.Movies[0].ID)
	assert.Equal(t, uint64(4), page.Movies[1].ID)
	assert.True(t, page.HasMore)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, uint64(4), *page.NextCursor)
	assert.Equal(t, []string{"Sci-Fi", "Thriller"}, page.Movies[0].Genre)
	assert.Equal(t, "2010-07-16", page.Movies[0].ReleaseDate.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPageLastPage(t *testing.T) {
	repo, mock := newMovieRepo(t)

	rows := sqlmock.NewRows(movieCols)
	movieRow(rows, 3, "Movie")
	mock.ExpectQuery(regexp.QuoteMeta("FROM movies WHERE id < ? ORDER BY id DESC LIMIT ?")).
		WithArgs(uint64(4), 3).WillReturnRows(rows)

	page, err := repo.ListPage(context.Background(), 2, 4)
	require.NoError(t, err)
	assert.Len(t, page.Movies, 1)
	assert.False(t, page.HasMore)
	assert.Nil(t, page.NextCursor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPageClampsLimit(t *testing.T) {
	repo, mock := newMovieRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("LIMIT ?")).WithArgs(MaxPageLimit + 1).
		WillReturnRows(sqlmock.NewRows(movieCols))

	page, err := repo.ListPage(context.Background(), 5000, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Movies)
	assert.NotNil(t, page.Movies)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSortedBuildsCompoundOrder(t *testing.T) {
	repo, mock := newMovieRepo(t)

	rows := sqlmock.NewRows(movieCols)
	movieRow(rows, 1, "A")
	mock.ExpectQuery(regexp.QuoteMeta("FROM movies ORDER BY rating DESC, title ASC")).WillReturnRows(rows)

	movies, err := repo.ListSorted(context.Background(), []model.SortField{
		{Key: model.SortRating, Desc: true},
		{Key: model.SortName},
	})
	require.NoError(t, err)
	assert.Len(t, movies, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchAppliesRelevanceFloor(t *testing.T) {
	repo, mock := newMovieRepo(t)

	rows := sqlmock.NewRows(append(append([]string{}, movieCols...), "score"))
	now := time.Now().UTC()
	for i, score := range []float64{10, 8, 5, 4} {
		rows.AddRow(uint64(i+1), "Inception", "dream heist", "https://x", 8.0, now, 100, []byte(`[]`), nil, now, now, score)
	}
	mock.ExpectQuery(regexp.QuoteMeta("AGAINST (? IN NATURAL LANGUAGE MODE) AS score")).
		WithArgs("dream", "dream").WillReturnRows(rows)

	movies, err := repo.Search(context.Background(), "dream")
	require.NoError(t, err)
	require.Len(t, movies, 3)
	assert.Equal(t, []float64{10, 8, 5}, []float64{movies[0].Score, movies[1].Score, movies[2].Score})
	assert.Nil(t, movies[0].CreatedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertIdempotent(t *testing.T) {
	repo, mock := newMovieRepo(t)
	creator := uint64(9)
	m := model.Movie{
		Title: "Inception", Description: "heist", PosterURL: "https://x", Rating: 8.8,
		ReleaseDate: model.NewDate(time.Date(2010, 7, 16, 0, 0, 0, 0, time.UTC)),
		Duration:    148, Genre: []string{"Sci-Fi"}, CreatedBy: &creator,
	}
	insert := regexp.QuoteMeta("ON DUPLICATE KEY UPDATE id=LAST_INSERT_ID(id)")

	mock.ExpectExec(insert).
		WithArgs("key-1", "Inception", "heist", "https://x", 8.8, m.ReleaseDate.Time, 148, `["Sci-Fi"]`, creator).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec(insert).WillReturnResult(sqlmock.NewResult(7, 0))

	id, created, err := repo.InsertIdempotent(context.Background(), "key-1", m)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
	assert.True(t, created)

	id, created, err = repo.InsertIdempotent(context.Background(), "key-1", m)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOnlyTouchesPresentFields(t *testing.T) {
	repo, mock := newMovieRepo(t)
	title := "Inception (Director's Cut)"
	rating := 9.1

	mock.ExpectExec(regexp.QuoteMeta("UPDATE movies SET title=?,rating=? WHERE id=?")).
		WithArgs(title, rating, uint64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	rows := sqlmock.NewRows(movieCols)
	movieRow(rows, 3, title)
	mock.ExpectQuery(regexp.QuoteMeta("FROM movies WHERE id=?")).WithArgs(uint64(3)).WillReturnRows(rows)

	m, err := repo.Update(context.Background(), 3, model.MoviePatch{Title: &title, Rating: &rating})
	require.NoError(t, err)
	assert.Equal(t, title, m.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateReportsCommitWhenRereadFails(t *testing.T) {
	repo, mock := newMovieRepo(t)
	poster := "https://res.cloudinary.com/demo/image/upload/v2/cinevault/images/new.jpg"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE movies SET poster_url=? WHERE id=?")).
		WithArgs(poster, uint64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM movies WHERE id=?")).WithArgs(uint64(3)).
		WillReturnError(context.Canceled)

	_, err := repo.Update(context.Background(), 3, model.MoviePatch{PosterURL: &poster})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpdateCommitted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatementFailureIsNotCommitted(t *testing.T) {
	repo, mock := newMovieRepo(t)
	title := "Heat"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE movies SET title=? WHERE id=?")).
		WithArgs(title, uint64(3)).WillReturnError(errors.New("deadlock"))

	_, err := repo.Update(context.Background(), 3, model.MoviePatch{Title: &title})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUpdateCommitted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock := newMovieRepo(t)
	mock.ExpectQuery("FROM movies WHERE id=").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrMovieNotFound)
}

func TestDelete(t *testing.T) {
	repo, mock := newMovieRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM movies WHERE id=?")).WithArgs(uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM movies WHERE id=?")).WithArgs(uint64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM movies WHERE id=?")).WithArgs(uint64(5)).
		WillReturnError(errors.New("lock wait timeout"))

	assert.NoError(t, repo.Delete(context.Background(), 3))
	assert.ErrorIs(t, repo.Delete(context.Background(), 4), ErrMovieNotFound)
	err := repo.Delete(context.Background(), 5)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMovieNotFound)
}

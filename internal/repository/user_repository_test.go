package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cinevault/internal/model"
)

var userCols = []string{"id", "user_name", "email", "password_hash", "role", "is_active",
	"refresh_token_hash", "created_at", "updated_at"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestUserCreateNormalizes(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (user_name, email, password_hash, role) VALUES (?,?,?,?)")).
		WithArgs("trinity", "trinity@zion.io", sqlmock.AnyArg(), model.RoleUser).
		WillReturnResult(sqlmock.NewResult(12, 1))

	id, err := repo.Create(context.Background(), "  trinity ", " Trinity@Zion.IO ", "followthewhiterabbit", model.RoleUser, bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := repo.Create(context.Background(), "neo", "neo@zion.io", "password1", model.RoleUser, bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestUserExists(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(user_name)=LOWER(?) OR email=?")).
		WithArgs("Neo", "neo@zion.io").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := repo.ExistsByUserNameOrEmail(context.Background(), "Neo", "NEO@zion.io")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUserGetByEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=? LIMIT 1")).
		WithArgs("neo@zion.io").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(1, "neo", "neo@zion.io", "$2a$hash", "ADMIN", true, "abc", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=? LIMIT 1")).
		WithArgs("ghost@zion.io").
		WillReturnError(sql.ErrNoRows)

	u, err := repo.GetByEmail(context.Background(), "Neo@Zion.io")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin())
	assert.Equal(t, "abc", u.RefreshTokenHash)

	_, err = repo.GetByEmail(context.Background(), "ghost@zion.io")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserSetActiveDropsSession(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET is_active=0, refresh_token_hash=NULL WHERE id=?")).
		WithArgs(uint64(4)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET role=? WHERE id=?")).
		WithArgs(model.RoleAdmin, uint64(5)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM users WHERE id=?")).
		WithArgs(uint64(5)).WillReturnError(sql.ErrNoRows)

	require.NoError(t, repo.SetActive(context.Background(), 4, false))
	assert.ErrorIs(t, repo.SetRole(context.Background(), 5, model.RoleAdmin), ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET refresh_token_hash=? WHERE id=?")).
		WithArgs("h1", uint64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT refresh_token_hash FROM users WHERE id=?")).
		WithArgs(uint64(1)).WillReturnRows(sqlmock.NewRows([]string{"refresh_token_hash"}).AddRow(nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET refresh_token_hash=NULL WHERE id=?")).
		WithArgs(uint64(1)).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.StoreRefresh(context.Background(), 1, "h1"))
	h, err := repo.CurrentRefresh(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "", h)
	require.NoError(t, repo.RevokeRefresh(context.Background(), 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

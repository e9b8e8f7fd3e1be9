// Package repository holds the MySQL-backed stores. The sentinel errors
// below let handlers and services tell "no such row" and "already exists"
// apart from infrastructure failures.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("username or email already exists")
	ErrMovieNotFound = errors.New("movie not found")

	// ErrUpdateCommitted wraps a failure that happened after an UPDATE was
	// applied. The row already holds the new values.
	ErrUpdateCommitted = errors.New("movie updated but not re-read")
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

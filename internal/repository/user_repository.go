package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/cinevault/internal/model"
	"github.com/iliyamo/cinevault/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,user_name,email,password_hash,role,is_active,COALESCE(refresh_token_hash,''),created_at,updated_at"

// NormalizeEmail lowercases and trims an address the way it is stored.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create hashes the password and inserts the user, returning its ID.
func (r *UserRepo) Create(ctx context.Context, userName, email, password, role string, cost int) (uint64, error) {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (user_name, email, password_hash, role) VALUES (?,?,?,?)",
		strings.TrimSpace(userName), NormalizeEmail(email), hash, role)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrDuplicateUser
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// ExistsByUserNameOrEmail reports whether either identifier is taken.
// Usernames compare case-insensitively.
func (r *UserRepo) ExistsByUserNameOrEmail(ctx context.Context, userName, email string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE LOWER(user_name)=LOWER(?) OR email=?",
		strings.TrimSpace(userName), NormalizeEmail(email)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return n > 0, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.UserName, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive,
		&u.RefreshTokenHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// SetRole changes a user's role.
func (r *UserRepo) SetRole(ctx context.Context, id uint64, role string) error {
	return r.exec(ctx, "UPDATE users SET role=? WHERE id=?", role, id)
}

// SetActive activates or deactivates an account. Deactivation also drops
// the open session.
func (r *UserRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	if active {
		return r.exec(ctx, "UPDATE users SET is_active=1 WHERE id=?", id)
	}
	return r.exec(ctx, "UPDATE users SET is_active=0, refresh_token_hash=NULL WHERE id=?", id)
}

func (r *UserRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	// RowsAffected is 0 for a no-op update too, so confirm the row exists.
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		id := args[len(args)-1]
		if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=?", id).Scan(&one); errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
	}
	return nil
}

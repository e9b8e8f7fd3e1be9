package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TokenRepo keeps one refresh token hash per user (users.refresh_token_hash).
// Storing a new hash replaces the previous one, so each account has at most
// one live session.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh overwrites the user's refresh token hash.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=? WHERE id=?", tokenHash, userID)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Same hash twice is a no-op update; only a missing row is an error.
		if _, err := r.CurrentRefresh(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

// CurrentRefresh returns the stored hash, or "" when no session is open.
func (r *TokenRepo) CurrentRefresh(ctx context.Context, userID uint64) (string, error) {
	var h sql.NullString
	err := r.DB.QueryRowContext(ctx,
		"SELECT refresh_token_hash FROM users WHERE id=? LIMIT 1", userID).Scan(&h)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load refresh token: %w", err)
	}
	return h.String, nil
}

// RevokeRefresh clears the stored hash.
func (r *TokenRepo) RevokeRefresh(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=NULL WHERE id=?", userID)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/cinevault/internal/model"
	"github.com/iliyamo/cinevault/internal/utils"
)

var (
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrSessionRevoked = errors.New("session is no longer valid")
)

// RefreshStore persists the single refresh token hash of each user.
type RefreshStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string) error
	CurrentRefresh(ctx context.Context, userID uint64) (string, error)
	RevokeRefresh(ctx context.Context, userID uint64) error
}

type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenService issues and verifies access and refresh tokens. A refresh
// token is valid only while its hash is the one stored for the user, so
// issuing a new one (login) or revoking (logout) ends the old session.
type TokenService struct {
	cfg   TokenConfig
	store RefreshStore
}

func NewTokenService(cfg TokenConfig, store RefreshStore) *TokenService {
	if store == nil {
		panic("nil RefreshStore")
	}
	return &TokenService{cfg: cfg, store: store}
}

// RefreshTTL is how long refresh tokens (and their cookie) live.
func (s *TokenService) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }

func (s *TokenService) IssueAccess(u model.User) (utils.SignedToken, error) {
	return utils.SignToken(s.cfg.AccessSecret, u.ID, u.UserName, s.cfg.AccessTTL)
}

// IssueRefresh signs a refresh token and records its hash before
// returning, replacing any previous session of the user.
func (s *TokenService) IssueRefresh(ctx context.Context, u model.User) (utils.SignedToken, error) {
	tok, err := utils.SignToken(s.cfg.RefreshSecret, u.ID, u.UserName, s.cfg.RefreshTTL)
	if err != nil {
		return utils.SignedToken{}, err
	}
	if err := s.store.StoreRefresh(ctx, u.ID, utils.HashToken(tok.Token)); err != nil {
		return utils.SignedToken{}, fmt.Errorf("persist refresh token: %w", err)
	}
	return tok, nil
}

func (s *TokenService) VerifyAccess(raw string) (*utils.Claims, error) {
	claims, err := utils.ParseToken(s.cfg.AccessSecret, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// VerifyRefresh checks signature and expiry, then that raw is the token
// currently stored for its user.
func (s *TokenService) VerifyRefresh(ctx context.Context, raw string) (*utils.Claims, error) {
	claims, err := utils.ParseToken(s.cfg.RefreshSecret, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	stored, err := s.store.CurrentRefresh(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	got := utils.HashToken(raw)
	if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(got)) != 1 {
		return nil, ErrSessionRevoked
	}
	return claims, nil
}

func (s *TokenService) Revoke(ctx context.Context, userID uint64) error {
	return s.store.RevokeRefresh(ctx, userID)
}

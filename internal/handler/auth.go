package handler

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinevault/internal/apperr"
	"github.com/iliyamo/cinevault/internal/middleware"
	"github.com/iliyamo/cinevault/internal/model"
	"github.com/iliyamo/cinevault/internal/repository"
	"github.com/iliyamo/cinevault/internal/service"
	"github.com/iliyamo/cinevault/internal/utils"
)

// authTimeout bounds the store work of a single auth request.
const authTimeout = 5 * time.Second

const minUserNameLength = 3

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserStore is the slice of the credential store the auth endpoints use.
type UserStore interface {
	Create(ctx context.Context, userName, email, password, role string, cost int) (uint64, error)
	ExistsByUserNameOrEmail(ctx context.Context, userName, email string) (bool, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Users      UserStore
	Tokens     *service.TokenService
	BcryptCost int
	cookies    cookieFactory
}

func NewAuthHandler(users UserStore, tokens *service.TokenService, bcryptCost int, production bool) *AuthHandler {
	return &AuthHandler{
		Users:      users,
		Tokens:     tokens,
		BcryptCost: bcryptCost,
		cookies:    cookieFactory{secure: production, ttl: tokens.RefreshTTL()},
	}
}

type registerReq struct {
	UserName string `json:"userName" form:"userName"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type loginReq struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type accessResp struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Register creates a USER account. Both identifiers must be unused.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}
	req.UserName = strings.TrimSpace(req.UserName)
	req.Email = repository.NormalizeEmail(req.Email)

	if req.UserName == "" || req.Email == "" || req.Password == "" {
		return apperr.Validation("All fields are required")
	}
	var problems []string
	if len(req.UserName) < minUserNameLength {
		problems = append(problems, "userName must be at least 3 characters")
	}
	if !emailPattern.MatchString(req.Email) {
		problems = append(problems, "email is not a valid address")
	}
	if len(req.Password) < utils.MinPasswordLength {
		problems = append(problems, "password must be at least 8 characters")
	}
	if len(problems) > 0 {
		return apperr.Validation(problems[0], problems...)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	exists, err := h.Users.ExistsByUserNameOrEmail(ctx, req.UserName, req.Email)
	if err != nil {
		return apperr.Internal("Failed to register user", err)
	}
	if exists {
		return apperr.Conflict("User with this email or username already exists")
	}

	id, err := h.Users.Create(ctx, req.UserName, req.Email, req.Password, model.RoleUser, h.BcryptCost)
	switch {
	case errors.Is(err, repository.ErrDuplicateUser):
		return apperr.Conflict("User with this email or username already exists")
	case errors.Is(err, utils.ErrPasswordTooLong):
		return apperr.Validation("Password is too long")
	case err != nil:
		return apperr.Internal("Failed to register user", err)
	}

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return apperr.Internal("Failed to load registered user", err)
	}
	return respond(c, http.StatusCreated, "User registered successfully", u)
}

// Login checks credentials, rotates the refresh session into a cookie and
// returns the access token. Unknown email and wrong password look the same.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}
	req.Email = repository.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return apperr.Validation("Email and password are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return apperr.Auth("Invalid email or password")
	}
	if err != nil {
		return apperr.Internal("Failed to log in", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return apperr.Auth("Invalid email or password")
	}
	if !u.IsActive {
		return apperr.Forbidden("Account is deactivated")
	}

	access, err := h.Tokens.IssueAccess(u)
	if err != nil {
		return apperr.Internal("Failed to issue access token", err)
	}
	refresh, err := h.Tokens.IssueRefresh(ctx, u)
	if err != nil {
		return apperr.Internal("Failed to issue refresh token", err)
	}

	c.SetCookie(h.cookies.refresh(refresh.Token))
	return ok(c, "User logged in successfully", accessResp{AccessToken: access.Token, ExpiresAt: access.Exp})
}

// RefreshToken exchanges the refresh cookie for a new access token. Any
// failure clears the cookie.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	ck, err := c.Cookie(RefreshCookie)
	if err != nil || ck.Value == "" {
		return apperr.Auth("Refresh token is missing")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	claims, err := h.Tokens.VerifyRefresh(ctx, ck.Value)
	if err != nil {
		c.SetCookie(h.cookies.clear())
		if errors.Is(err, service.ErrInvalidToken) || errors.Is(err, service.ErrSessionRevoked) ||
			errors.Is(err, repository.ErrUserNotFound) {
			return apperr.Auth("Invalid or expired refresh token")
		}
		return apperr.Internal("Failed to refresh token", err)
	}

	u, err := h.Users.GetByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		c.SetCookie(h.cookies.clear())
		return apperr.Auth("Invalid or expired refresh token")
	}
	if err != nil {
		return apperr.Internal("Failed to refresh token", err)
	}
	if !u.IsActive {
		c.SetCookie(h.cookies.clear())
		return apperr.Forbidden("Account is deactivated")
	}

	access, err := h.Tokens.IssueAccess(u)
	if err != nil {
		return apperr.Internal("Failed to issue access token", err)
	}
	return ok(c, "Access token refreshed", accessResp{AccessToken: access.Token, ExpiresAt: access.Exp})
}

// Profile returns the authenticated user.
func (h *AuthHandler) Profile(c echo.Context) error {
	u, found := middleware.CurrentUser(c)
	if !found {
		return apperr.Auth("Unauthorized request")
	}
	return ok(c, "User profile fetched successfully", u)
}

// Logout revokes the stored refresh session and clears the cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	u, found := middleware.CurrentUser(c)
	if !found {
		return apperr.Auth("Unauthorized request")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	if err := h.Tokens.Revoke(ctx, u.ID); err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return apperr.Internal("Failed to log out", err)
	}
	c.SetCookie(h.cookies.clear())
	return ok(c, "User logged out successfully", nil)
}

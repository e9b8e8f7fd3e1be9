package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinevault/internal/apperr"
	"github.com/iliyamo/cinevault/internal/model"
	"github.com/iliyamo/cinevault/internal/repository"
	"github.com/iliyamo/cinevault/internal/utils"
)

// AccessCookie is the optional cookie fallback for the access token.
const AccessCookie = "accessToken"

// AccessVerifier validates access tokens.
type AccessVerifier interface {
	VerifyAccess(raw string) (*utils.Claims, error)
}

// UserLoader loads the account behind a token.
type UserLoader interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// Authenticate validates the access token from the Authorization header
// (or the accessToken cookie when the header is absent), loads the user
// and rejects deactivated accounts. Activation is checked on every request,
// so deactivating a user takes effect before their token expires.
func Authenticate(tokens AccessVerifier, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if raw == "" {
				if ck, err := c.Cookie(AccessCookie); err == nil {
					raw = ck.Value
				}
			}
			if raw == "" {
				return apperr.Auth("Unauthorized request")
			}

			claims, err := tokens.VerifyAccess(raw)
			if err != nil {
				return apperr.Auth("Invalid or expired access token")
			}

			u, err := users.GetByID(c.Request().Context(), claims.UserID)
			if errors.Is(err, repository.ErrUserNotFound) {
				return apperr.Auth("Invalid access token")
			}
			if err != nil {
				return apperr.Internal("Failed to load user", err)
			}
			if !u.IsActive {
				return apperr.Forbidden("Account is deactivated")
			}

			SetUser(c, u)
			return next(c)
		}
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

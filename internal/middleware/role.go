package middleware // middleware provides shared request processing for handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinevault/internal/apperr"
)

// RequireRole rejects requests whose authenticated user has none of the
// given roles. It must run after Authenticate and before any handler
// reads the request body, so non-admins are refused before validation.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := CurrentUser(c)
			if !ok {
				return apperr.Auth("Unauthorized request")
			}
			if !allowed[u.Role] {
				return apperr.Forbidden("Access denied: insufficient permissions")
			}
			return next(c)
		}
	}
}

package middleware

// identity.go holds the context helpers shared by the auth, role, rate
// limit and request log middleware.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinevault/internal/model"
)

// userKey is where Authenticate stores the loaded model.User.
const userKey = "user"

// CurrentUser returns the authenticated user, if any.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(userKey).(model.User)
	return u, ok
}

// SetUser stores the authenticated user on the context.
func SetUser(c echo.Context, u model.User) { c.Set(userKey, u) }

// userID is the rate-limit identity: the authenticated user's id, else the
// subject of a valid access token on the request, else "anon". The global
// limiter runs before Authenticate, so it reads the token itself.
func userID(c echo.Context, tokens AccessVerifier) string {
	if u, ok := CurrentUser(c); ok {
		return strconv.FormatUint(u.ID, 10)
	}
	if tokens == nil {
		return "anon"
	}
	raw := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if raw == "" {
		if ck, err := c.Cookie(AccessCookie); err == nil {
			raw = ck.Value
		}
	}
	if raw == "" {
		return "anon"
	}
	claims, err := tokens.VerifyAccess(raw)
	if err != nil {
		return "anon"
	}
	return strconv.FormatUint(claims.UserID, 10)
}

package handler

import (
	"net/http"
	"time"
)

// RefreshCookie carries the refresh token between login and refresh.
const RefreshCookie = "refreshToken"

// cookieFactory builds the refresh cookie. Production cookies are sent on
// cross-site requests from the client origin, which browsers only allow
// for Secure + SameSite=None.
type cookieFactory struct {
	secure bool
	ttl    time.Duration
}

func (f cookieFactory) base() *http.Cookie {
	ck := &http.Cookie{
		Name:     RefreshCookie,
		Path:     "/",
		HttpOnly: true,
		Secure:   f.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if f.secure {
		ck.SameSite = http.SameSiteNoneMode
	}
	return ck
}

func (f cookieFactory) refresh(token string) *http.Cookie {
	ck := f.base()
	ck.Value = token
	ck.MaxAge = int(f.ttl / time.Second)
	ck.Expires = time.Now().Add(f.ttl)
	return ck
}

func (f cookieFactory) clear() *http.Cookie {
	ck := f.base()
	ck.MaxAge = -1
	ck.Expires = time.Unix(0, 0)
	return ck
}

package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/cinevault/internal/config"
	"github.com/iliyamo/cinevault/internal/handler"
	"github.com/iliyamo/cinevault/internal/middleware"
	"github.com/iliyamo/cinevault/internal/model"
)

// Options carries what the router needs beyond the handlers. Redis may be
// nil, in which case rate limiting and response caching are off. Tokens
// lets the ip_user rate-limit strategy identify callers.
type Options struct {
	ClientURL     string
	MaxUploadSize string
	Cache         config.CacheConfig
	RateLimit     config.RateLimitConfig
	Redis         *redis.Client
	Tokens        middleware.AccessVerifier
	Log           *zap.Logger
}

// New builds the echo instance with the global middleware chain and the
// central error handler installed.
func New(o Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(o.Log)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{o.ClientURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	e.Use(middleware.RequestLogger(o.Log))
	e.Use(middleware.RateLimit(o.RateLimit, o.Redis, o.Tokens, o.Log))
	return e
}

// RegisterRoutes registers the health probe.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.Health)
}

// RegisterAuth registers the /auth group. Register, login and refresh are
// public; profile and logout require a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, tokens middleware.AccessVerifier, users middleware.UserLoader) {
	g := e.Group("/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh-token", a.RefreshToken)

	authed := middleware.Authenticate(tokens, users)
	g.GET("/profile", a.Profile, authed)
	g.POST("/logout", a.Logout, authed)
}

// RegisterMovies registers the public catalog reads (cached when Redis is
// available) and the ADMIN writes. The role gate runs before the body
// limit and before any handler reads the form.
func RegisterMovies(e *echo.Echo, o Options, pub *handler.MoviePublicHandler, admin *handler.MovieAdminHandler,
	tokens middleware.AccessVerifier, users middleware.UserLoader) {
	g := e.Group("/movies")

	cached := middleware.ResponseCache(o.Cache, o.Redis, o.Log)
	g.GET("", pub.List, cached)
	g.GET("/sorted", pub.Sorted, cached)
	g.GET("/search", pub.Search, cached)

	limit := o.MaxUploadSize
	if limit == "" {
		limit = "10M"
	}
	write := []echo.MiddlewareFunc{
		middleware.Authenticate(tokens, users),
		middleware.RequireRole(model.RoleAdmin),
		echomw.BodyLimit(limit),
	}
	g.POST("", admin.Create, write...)
	g.PATCH("/:id", admin.Edit, write...)
	g.PUT("/:id", admin.Edit, write...)
	g.DELETE("/:id", admin.Delete, write...)
}

// Package router registers the HTTP routes of the API and their middleware.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/rewear/internal/config"
	"github.com/iliyamo/rewear/internal/handler"
	"github.com/iliyamo/rewear/internal/logger"
	"github.com/iliyamo/rewear/internal/middleware"
	"github.com/iliyamo/rewear/internal/model"
)

// Deps carries the handlers and shared infrastructure the routes need.
// A nil Redis client disables response caching and rate limiting.
type Deps struct {
	JWTSecret string
	Log       *zap.Logger
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	DB        handler.Pinger

	Auth  *handler.AuthHandler
	Items *handler.ItemHandler
	Swaps *handler.SwapHandler
	Users *handler.UserHandler
	Admin *handler.AdminHandler
}

// New builds the echo instance with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()

	e.Use(echomw.Recover())
	e.Use(middleware.RequestID(d.Log))
	e.Use(logger.Middleware(d.Log))

	RegisterRoutes(e, d.DB)
	RegisterAuth(e, d.Auth, d.JWTSecret)
	RegisterPublic(e, d)

	// Every authenticated route shares the token bucket; successful writes
	// flush the cached catalog pages.
	protected := e.Group("/v1",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
		middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log),
		middleware.InvalidateCache(d.Cache, d.Redis, d.Log),
	)
	protected.GET("/me", d.Auth.Me)
	RegisterItems(protected, d.Items)
	RegisterSwaps(protected, d.Swaps)
	RegisterUsers(protected, d.Users, d.Items)
	RegisterAdmin(protected, d.Admin)
	return e
}

// RegisterRoutes registers the health probes.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterAuth registers the token endpoints. None of them requires an
// access token; logout accepts either a refresh token or a bearer.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)              // rotates the refresh token
	g.POST("/refresh-access", a.RefreshAccess) // keeps the refresh token
	g.POST("/logout", a.Logout)

	e.POST("/v1/logout", a.Logout)
}

// RegisterPublic registers the guest-facing catalog and profile pages.
func RegisterPublic(e *echo.Echo, d Deps) {
	e.GET("/v1/items", d.Items.Browse, middleware.NewRedisCache(d.Cache, d.Redis))
	e.GET("/v1/items/:id", d.Items.Get, middleware.OptionalJWT(d.JWTSecret))
	e.GET("/v1/users/:id", d.Users.Public)
}

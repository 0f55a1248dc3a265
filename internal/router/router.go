package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-api/internal/handler"
	"github.com/iliyamo/storefront-api/internal/middleware"
)

// RegisterRoutes registers the health endpoints.  /readyz pings the
// database when one is given.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health)
	if db != nil {
		e.GET("/readyz", handler.Ready(db))
	}
}

// RegisterAuth registers all authentication-related routes.  Register,
// login, refresh, logout and verify-email handle their own tokens; /auth/me
// requires a valid access token.  limit guards the credential endpoints.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit ...echo.MiddlewareFunc) {
	g := e.Group("/auth")
	g.POST("/register", a.Register, limit...)
	g.POST("/login", a.Login, limit...)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh, limit...)
	// Revokes the refresh token in the body, or all sessions of the bearer.
	g.POST("/logout", a.Logout)
	// Takes a verification token, never an access token.
	g.GET("/verify-email", a.VerifyEmail)

	g.GET("/me", a.Me, middleware.JWTAuth(jwtSecret))
}

package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-api/internal/handler"
	"github.com/iliyamo/storefront-api/internal/middleware"
	"github.com/iliyamo/storefront-api/internal/model"
)

// RegisterCatalog registers product routes.  Reads are public and go
// through the response cache; writes need a seller or admin token, and
// ownership is checked by the service.
func RegisterCatalog(e *echo.Echo, p *handler.ProductHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	auth := middleware.JWTAuth(jwtSecret)
	sellers := middleware.RequireRole(model.RoleSeller, model.RoleAdmin)

	e.GET("/products", p.List, cache)
	// Static segment wins over :id in echo's router.
	e.GET("/products/export", p.Export, auth, sellers)
	e.GET("/products/:id", p.Get, cache)

	e.POST("/products", p.Create, auth, sellers)
	e.PUT("/products/:id", p.Update, auth)
	e.DELETE("/products/:id", p.Delete, auth)
}

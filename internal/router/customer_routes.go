package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-api/internal/handler"
	"github.com/iliyamo/storefront-api/internal/middleware"
	"github.com/iliyamo/storefront-api/internal/model"
)

// RegisterCustomer registers the cart and order endpoints.  All routes
// require a valid access token and act on the caller's own data; changing
// an order's status additionally needs an admin or seller role.
func RegisterCustomer(e *echo.Echo, cart *handler.CartHandler, orders *handler.OrderHandler, jwtSecret string) {
	auth := middleware.JWTAuth(jwtSecret)

	c := e.Group("/cart", auth)
	c.POST("", cart.Add)
	c.GET("", cart.List)
	c.DELETE("", cart.Clear)
	c.PATCH("/:id", cart.Update)
	c.DELETE("/:id", cart.Remove)

	o := e.Group("/orders", auth)
	o.POST("/checkout", orders.Checkout)
	o.GET("/me", orders.ListMine)
	o.GET("/:id", orders.Get)
	o.PATCH("/:id", orders.UpdateStatus, middleware.RequireRole(model.RoleAdmin, model.RoleSeller))
}

package middleware // middleware provides shared request processing for handlers

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/storefront-api/internal/model"
    "github.com/iliyamo/storefront-api/internal/service"
)

// RequireRole returns a middleware function that enforces that the
// authenticated user has one of the specified roles.  It applies the same
// capability check the services use, so route guards and service guards
// cannot drift apart.  JWTAuth must run first.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if err := service.Authorize(Role(c), roles...); err != nil {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": err.Error()})
            }
            return next(c)
        }
    }
}

package handler // package handler contains HTTP handlers

import (
    "context"
    "fmt"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/storefront-api/internal/middleware"
    "github.com/iliyamo/storefront-api/internal/service"
)

// requestTimeout bounds the store work of a single request.
const requestTimeout = 5 * time.Second

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
    return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// getUserID returns the authenticated user id set by JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
    id, ok := middleware.UserID(c)
    if !ok {
        return 0, fmt.Errorf("%w: invalid user_id in context", service.ErrUnauthenticated)
    }
    return id, nil
}

// callerFrom builds the service Caller for the request.
func callerFrom(c echo.Context) (service.Caller, error) {
    id, err := getUserID(c)
    if err != nil {
        return service.Caller{}, err
    }
    return service.Caller{ID: id, Role: middleware.Role(c)}, nil
}

// parseIDParam reads a positive numeric path parameter.
func parseIDParam(c echo.Context, name string) (uint64, error) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, fmt.Errorf("%w: invalid %s", service.ErrValidation, name)
    }
    return id, nil
}

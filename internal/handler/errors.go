package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/storefront-api/internal/service"
)

// respondError maps service errors onto HTTP status codes.  The body is
// always {"error": code, "message": text}.  Unexpected errors are logged
// and answered with a generic message.
func respondError(c echo.Context, log *zap.Logger, err error) error {
    status, code := http.StatusInternalServerError, "internal_error"
    switch {
    case errors.Is(err, service.ErrEmptyCart):
        status, code = http.StatusBadRequest, "empty_cart"
    case errors.Is(err, service.ErrInsufficientStock):
        status, code = http.StatusBadRequest, "insufficient_stock"
    case errors.Is(err, service.ErrProductNotFound):
        status, code = http.StatusBadRequest, "product_not_found"
    case errors.Is(err, service.ErrValidation):
        status, code = http.StatusBadRequest, "validation_error"
    case errors.Is(err, service.ErrUnauthenticated):
        status, code = http.StatusUnauthorized, "unauthenticated"
    case errors.Is(err, service.ErrForbidden):
        status, code = http.StatusForbidden, "forbidden"
    case errors.Is(err, service.ErrNotFound):
        status, code = http.StatusNotFound, "not_found"
    case errors.Is(err, service.ErrConflict):
        status, code = http.StatusConflict, "conflict"
    }

    msg := err.Error()
    if status == http.StatusInternalServerError {
        log.Error("request failed",
            zap.String("method", c.Request().Method),
            zap.String("path", c.Path()),
            zap.Error(err))
        msg = "internal server error"
    }
    body := echo.Map{"error": code, "message": msg}
    var pe *service.ProductError
    if errors.As(err, &pe) {
        body["product_id"] = pe.ProductID
    }
    return c.JSON(status, body)
}

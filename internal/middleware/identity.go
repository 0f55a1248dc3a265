package middleware

// identity.go defines helpers that read the identity JWTAuth stored in the
// Echo context.

import (
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/storefront-api/internal/model"
)

// UserID returns the authenticated user id.  ok is false for anonymous
// requests.
func UserID(c echo.Context) (uint64, bool) {
    switch v := c.Get(CtxUserID).(type) {
    case uint64:
        return v, v != 0
    case string:
        n, err := strconv.ParseUint(v, 10, 64)
        return n, err == nil && n != 0
    }
    return 0, false
}

// Role returns the authenticated role, or "" for anonymous requests.
func Role(c echo.Context) model.Role {
    if s, ok := c.Get(CtxRole).(string); ok {
        if r, ok := model.ParseRole(s); ok {
            return r
        }
    }
    return ""
}

// subjectKey identifies the caller for rate-limit keys; "anon" when no
// user is authenticated.
func subjectKey(c echo.Context) string {
    if id, ok := UserID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "anon"
}

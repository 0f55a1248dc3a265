package handler

import (
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/storefront-api/internal/config"
    "github.com/iliyamo/storefront-api/internal/middleware"
    "github.com/iliyamo/storefront-api/internal/service"
    "github.com/iliyamo/storefront-api/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
    Cfg  config.Config
    Auth *service.AuthService
    Log  *zap.Logger
}

func NewAuthHandler(cfg config.Config, a *service.AuthService, log *zap.Logger) *AuthHandler {
    return &AuthHandler{Cfg: cfg, Auth: a, Log: log}
}

// ----- DTOs -----

type registerReq struct {
    Username string `json:"username" validate:"required,max=255"`
    Email    string `json:"email" validate:"required,email,max=255"`
    Password string `json:"password" validate:"required,min=6,max=72"`
    FullName string `json:"full_name" validate:"max=255"`
    Role     string `json:"role" validate:"omitempty,oneof=user seller admin"`
}
type loginReq struct {
    Username string `json:"username" validate:"required"`
    Password string `json:"password" validate:"required"`
}
type refreshReq struct {
    RefreshToken string `json:"refresh_token"`
}

type sessionResp struct {
    Message      string    `json:"message"`
    AccessToken  string    `json:"access_token"`
    RefreshToken string    `json:"refresh_token"`
    ExpiresAt    time.Time `json:"expires_at"`
    User         userResp  `json:"user"`
}

func toSessionResp(msg string, s *service.Session) sessionResp {
    return sessionResp{
        Message:      msg,
        AccessToken:  s.Access.Token,
        RefreshToken: s.Refresh.Raw, // raw back to client
        ExpiresAt:    s.Access.Exp,
        User:         toUserResp(s.User),
    }
}

// Register: create an unverified user.  The verification token goes out as
// an event; outside production it is echoed back for local testing.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, h.Log, err)
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    reg, err := h.Auth.Register(ctx, service.RegisterInput{
        Username: req.Username,
        Email:    req.Email,
        Password: req.Password,
        FullName: req.FullName,
        Role:     req.Role,
    })
    if err != nil {
        return respondError(c, h.Log, err)
    }
    resp := echo.Map{"message": "user registered successfully", "user_id": reg.User.ID}
    if !h.Cfg.IsProduction() {
        resp["verification_token"] = reg.VerificationToken
    }
    return c.JSON(http.StatusCreated, resp)
}

// Login: verify and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, h.Log, err)
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    sess, err := h.Auth.Login(ctx, req.Username, req.Password)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, toSessionResp("login successful", sess))
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil {
        return respondError(c, h.Log, errInvalidBody)
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    sess, err := h.Auth.Refresh(ctx, req.RefreshToken)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, toSessionResp("token refreshed", sess))
}

// Logout revokes the refresh token in the body, or every session of the
// bearer when no refresh token is given.  The route is not behind JWTAuth,
// so the bearer is parsed here.
func (h *AuthHandler) Logout(c echo.Context) error {
    var uid uint64
    if raw, ok := middleware.BearerToken(c); ok {
        if claims, err := utils.ParseToken(h.Cfg.JWTSecret, raw); err == nil && claims.Purpose == utils.PurposeAccess {
            uid, _ = claims.UserID()
        }
    }
    var req refreshReq
    _ = c.Bind(&req)

    ctx, cancel := withTimeout(c)
    defer cancel()
    if err := h.Auth.Logout(ctx, uid, req.RefreshToken); err != nil {
        return respondError(c, h.Log, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// VerifyEmail accepts the verification token as a bearer token or as the
// ?token= query parameter used by the emailed link.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
    raw, ok := middleware.BearerToken(c)
    if !ok {
        raw = strings.TrimSpace(c.QueryParam("token"))
    }
    if raw == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated", "message": "missing verification token"})
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    u, already, err := h.Auth.VerifyEmail(ctx, raw)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    msg := "email verified successfully"
    if already {
        msg = "email already verified"
    }
    return c.JSON(http.StatusOK, echo.Map{"message": msg, "user_id": u.ID})
}

// Me: simple protected endpoint.
func (h *AuthHandler) Me(c echo.Context) error {
    caller, err := callerFrom(c)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "user_id": caller.ID,
        "role":    caller.Role,
    })
}

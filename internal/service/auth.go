package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/storefront-api/internal/config"
	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/queue"
	"github.com/iliyamo/storefront-api/internal/repository"
	"github.com/iliyamo/storefront-api/internal/utils"
)

var errInvalidCredentials = fmt.Errorf("%w: invalid username or password", ErrUnauthenticated)

// AuthService registers users, issues token pairs and verifies email
// addresses.
type AuthService struct {
	users  UserStore
	tokens TokenStore
	events EventPublisher
	cfg    config.Config
	log    *zap.Logger
}

func NewAuthService(users UserStore, tokens TokenStore, events EventPublisher, cfg config.Config, log *zap.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, events: events, cfg: cfg, log: log}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
	Role     string
}

// Registration is the result of a successful sign-up.
type Registration struct {
	User              *model.User
	VerificationToken string
}

// Session is a freshly issued access/refresh pair.
type Session struct {
	User    *model.User
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// Register creates an unverified account and publishes a user.registered
// event carrying the verification token.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" || email == "" || in.Password == "" {
		return nil, validationf("username, email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, validationf("invalid email address")
	}

	role := model.RoleUser
	if r := strings.ToLower(strings.TrimSpace(in.Role)); r != "" {
		parsed, ok := model.ParseRole(r)
		if !ok {
			return nil, validationf("unknown role %q", in.Role)
		}
		role = parsed
	}
	if role == model.RoleAdmin && !s.cfg.AllowAdminSignup {
		return nil, validationf("admin accounts cannot be self-registered")
	}

	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Role:         role,
	}
	if err := s.users.Create(ctx, u); err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameExists):
			return nil, fmt.Errorf("%w: username already taken", ErrConflict)
		case errors.Is(err, repository.ErrEmailExists):
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return nil, err
	}

	vt, err := utils.NewVerificationToken(s.cfg.JWTSecret, u.ID, s.cfg.VerifyTTLMin)
	if err != nil {
		return nil, err
	}
	ev := queue.UserRegisteredEvent{
		UserID:            u.ID,
		Username:          u.Username,
		Email:             u.Email,
		VerificationToken: vt.Token,
		RegisteredAt:      time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.events.Publish(ctx, queue.EventUserRegistered, ev); err != nil {
		s.log.Warn("user.registered not published", zap.Uint64("user_id", u.ID), zap.Error(err))
	}
	return &Registration{User: u, VerificationToken: vt.Token}, nil
}

// Login checks the password and issues a new session.  Unknown usernames
// and wrong passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, validationf("username and password are required")
	}
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			utils.BurnPasswordCheck(password)
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, errInvalidCredentials
	}
	return s.issue(ctx, u)
}

// Refresh validates by hash, revokes the old token and issues a new pair.
func (s *AuthService) Refresh(ctx context.Context, raw string) (*Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, validationf("refresh_token required")
	}
	hash := utils.HashRefreshRaw(raw)
	userID, err := s.tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return nil, refreshErr(err)
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return nil, refreshErr(err)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: invalid refresh", ErrUnauthenticated)
		}
		return nil, err
	}
	return s.issue(ctx, u)
}

// Logout revokes one refresh token when raw is given, otherwise every
// token of userID.
func (s *AuthService) Logout(ctx context.Context, userID uint64, raw string) error {
	raw = strings.TrimSpace(raw)
	switch {
	case raw != "":
		hash := utils.HashRefreshRaw(raw)
		if _, err := s.tokens.ValidateRefresh(ctx, hash); err != nil {
			return refreshErr(err)
		}
		return refreshErr(s.tokens.RevokeByHash(ctx, hash))
	case userID != 0:
		return s.tokens.RevokeAllForUser(ctx, userID)
	}
	return validationf("provide Authorization header or refresh_token")
}

// VerifyEmail marks the token's subject as verified.  The bool result is
// true when the account was already verified.
func (s *AuthService) VerifyEmail(ctx context.Context, raw string) (*model.User, bool, error) {
	claims, err := utils.ParseToken(s.cfg.JWTSecret, raw)
	if err != nil {
		return nil, false, fmt.Errorf("%w: invalid or expired token", ErrUnauthenticated)
	}
	if claims.Purpose != utils.PurposeVerifyEmail {
		return nil, false, validationf("token is not an email verification token")
	}
	id, _ := claims.UserID()
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, false, fmt.Errorf("%w: user %d", ErrNotFound, id)
		}
		return nil, false, err
	}
	if u.IsVerified {
		return u, true, nil
	}
	if err := s.users.MarkVerified(ctx, u.ID); err != nil {
		return nil, false, err
	}
	u.IsVerified = true
	return u, false, nil
}

func (s *AuthService) issue(ctx context.Context, u *model.User) (*Session, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, string(u.Role), s.cfg.AccessTTLMin)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, err
	}
	return &Session{User: u, Access: access, Refresh: refresh}, nil
}

func refreshErr(err error) error {
	if errors.Is(err, repository.ErrInvalidRefresh) {
		return fmt.Errorf("%w: invalid refresh token", ErrUnauthenticated)
	}
	return err
}

package service

// AuthService is the business logic layer for authentication:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository / TokenRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//
// Every successful sign-in path (password, refresh, OAuth code exchange)
// ends in issueSession, so all sessions look the same to clients.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/auth"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
)

const (
	// DefaultRefreshTokenTTL is used when NewAuthService gets a zero TTL.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour

	// authCodeTTL bounds the gap between the provider callback and the
	// client's code exchange.
	authCodeTTL = 5 * time.Minute

	msgInvalidCredentials = "Invalid login credentials"
	msgInvalidRefresh     = "Invalid Refresh Token"
	msgInvalidCode        = "Invalid or expired authorization code"
)

// Credentials is the body of the signup and password grant requests.
type Credentials struct {
	Email       string `json:"email"        validate:"required,email"`
	Password    string `json:"password"     validate:"required,min=6,max=72"`
	DisplayName string `json:"display_name"`
}

// AuthService handles the authentication business logic.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository   → read/write user records
//   - store      repository.TokenRepository  → refresh tokens and auth codes
//   - tokens     *auth.TokenService          → generate/validate JWTs
//   - passwords  *auth.PasswordService       → bcrypt hashing
//   - logger     *slog.Logger                → structured logging
type AuthService struct {
	users      repository.UserRepository
	store      repository.TokenRepository
	tokens     *auth.TokenService
	passwords  *auth.PasswordService
	refreshTTL time.Duration
	logger     *slog.Logger

	now func() time.Time
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	store repository.TokenRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	refreshTTL time.Duration,
	logger *slog.Logger,
) *AuthService {
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &AuthService{
		users:      users,
		store:      store,
		tokens:     tokens,
		passwords:  passwords,
		refreshTTL: refreshTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// SignUp creates a password account and signs it in.
func (s *AuthService) SignUp(ctx context.Context, in Credentials) (*model.Session, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return nil, apperror.ValidationFailed("password", "Password should be at least 6 characters")
		}
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Email:        in.Email,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, &apperror.AppError{Err: apperror.ErrConflict, Message: "User already registered", Field: "email"}
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user signed up", slog.String("userID", user.ID))
	return s.issueSession(ctx, user)
}

// SignInWithPassword verifies email + password and issues a session.
//
// Unknown email and wrong password produce the same error (and, through
// VerifyDummy, the same timing) so the endpoint cannot be used to probe
// which addresses have accounts.
func (s *AuthService) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "Email is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "Password is required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.VerifyDummy(password)
			return nil, apperror.AuthFailed(msgInvalidCredentials, nil)
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	// OAuth-only accounts have no password hash.
	if user.PasswordHash == "" {
		s.passwords.VerifyDummy(password)
		return nil, apperror.AuthFailed(msgInvalidCredentials, nil)
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, apperror.AuthFailed(msgInvalidCredentials, nil)
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	s.logger.Info("user signed in", slog.String("userID", user.ID), slog.String("method", "password"))
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// session (with a new refresh token) is issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	if refreshToken == "" {
		return nil, apperror.AuthFailed(msgInvalidRefresh, nil)
	}

	rt, err := s.store.ConsumeRefreshToken(ctx, auth.HashOpaqueToken(refreshToken), s.now())
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.AuthFailed(msgInvalidRefresh, nil)
		}
		return nil, fmt.Errorf("service/auth: consuming refresh token: %w", err)
	}

	user, err := s.users.GetUserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.AuthFailed(msgInvalidRefresh, nil)
		}
		return nil, fmt.Errorf("service/auth: loading user %s: %w", rt.UserID, err)
	}

	return s.issueSession(ctx, user)
}

// ExchangeCode trades the one-time code from a federated sign-in for a session.
func (s *AuthService) ExchangeCode(ctx context.Context, code string) (*model.Session, error) {
	if code == "" {
		return nil, apperror.AuthFailed(msgInvalidCode, nil)
	}

	ac, err := s.store.ConsumeAuthCode(ctx, auth.HashOpaqueToken(code), s.now())
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.AuthFailed(msgInvalidCode, nil)
		}
		return nil, fmt.Errorf("service/auth: consuming auth code: %w", err)
	}

	user, err := s.users.GetUserByID(ctx, ac.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading user %s: %w", ac.UserID, err)
	}

	return s.issueSession(ctx, user)
}

// CompleteOAuth is called after a provider callback succeeded. It finds or
// creates the user for the provider account and returns a one-time code the
// client exchanges for a session.
//
// USER RESOLUTION ORDER:
//  1. An identity (provider, provider user id) already linked → that user
//  2. A user with the same (provider-verified) email → link the identity to it
//  3. Otherwise create a new user and link the identity
func (s *AuthService) CompleteOAuth(ctx context.Context, provider string, pu *auth.ProviderUser) (string, error) {
	if pu == nil || pu.ID == "" {
		return "", fmt.Errorf("service/auth: %s returned no user", provider)
	}

	user, err := s.resolveProviderUser(ctx, provider, pu)
	if err != nil {
		return "", err
	}

	code, err := auth.NewOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	err = s.store.CreateAuthCode(ctx, &model.AuthCode{
		CodeHash:  auth.HashOpaqueToken(code),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(authCodeTTL),
	})
	if err != nil {
		return "", fmt.Errorf("service/auth: storing auth code: %w", err)
	}

	s.logger.Info("user authenticated via OAuth",
		slog.String("userID", user.ID),
		slog.String("provider", provider),
	)
	return code, nil
}

func (s *AuthService) resolveProviderUser(ctx context.Context, provider string, pu *auth.ProviderUser) (*model.User, error) {
	user, err := s.users.GetUserByIdentity(ctx, provider, pu.ID)
	switch {
	case err == nil:
		// Keep the profile in sync with the provider.
		if (pu.Name != "" && pu.Name != user.DisplayName) || (pu.AvatarURL != "" && pu.AvatarURL != user.AvatarURL) {
			if pu.Name != "" {
				user.DisplayName = pu.Name
			}
			if pu.AvatarURL != "" {
				user.AvatarURL = pu.AvatarURL
			}
			if err := s.users.UpdateProfile(ctx, user); err != nil {
				return nil, fmt.Errorf("service/auth: updating profile of %s: %w", user.ID, err)
			}
		}
		return user, nil
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: looking up %s identity: %w", provider, err)
	}

	if pu.Email != "" {
		user, err = s.users.GetUserByEmail(ctx, pu.Email)
		if err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/auth: looking up user by email: %w", err)
		}
	}
	if user == nil {
		user = &model.User{Email: pu.Email, DisplayName: pu.Name, AvatarURL: pu.AvatarURL}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: creating user: %w", err)
		}
	}

	identity := &model.Identity{Provider: provider, ProviderUserID: pu.ID, UserID: user.ID}
	if err := s.users.LinkIdentity(ctx, identity); err != nil {
		return nil, fmt.Errorf("service/auth: linking %s identity: %w", provider, err)
	}
	return user, nil
}

// SignOut revokes every refresh token of the user. Outstanding access tokens
// stay valid until they expire, which is at most one access token TTL.
func (s *AuthService) SignOut(ctx context.Context, userID string) error {
	if err := s.store.RevokeRefreshTokens(ctx, userID, s.now()); err != nil {
		return fmt.Errorf("service/auth: signing out %s: %w", userID, err)
	}
	s.logger.Info("user signed out", slog.String("userID", userID))
	return nil
}

// GetUserByID returns the user for the given internal ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized("valid authentication required")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}

// issueSession mints an access token and a fresh refresh token for user.
func (s *AuthService) issueSession(ctx context.Context, user *model.User) (*model.Session, error) {
	access, expiresAt, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	refresh, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	err = s.store.CreateRefreshToken(ctx, &model.RefreshToken{
		UserID:    user.ID,
		TokenHash: auth.HashOpaqueToken(refresh),
		ExpiresAt: s.now().Add(s.refreshTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("service/auth: storing refresh token: %w", err)
	}

	return &model.Session{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.tokens.TTL().Seconds()),
		ExpiresAt:    expiresAt.Unix(),
		RefreshToken: refresh,
		User:         user,
	}, nil
}

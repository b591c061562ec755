package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voicedesk/internal/apperr"

	"golang.org/x/crypto/bcrypt"
)

// Credentials is what the login flow needs to know about an account.
type Credentials struct {
	UserID       string
	Role         string
	PasswordHash string
}

// CredentialStore looks accounts up by email or id. Implemented by internal/tenants.
type CredentialStore interface {
	CredentialsByEmail(ctx context.Context, email string) (Credentials, error)
	CredentialsByID(ctx context.Context, userID string) (Credentials, error)
}

// Service issues token pairs for valid credentials.
type Service struct {
	tokens *Manager
	store  CredentialStore
	clock  func() time.Time
}

func NewService(tokens *Manager, store CredentialStore) *Service {
	return &Service{tokens: tokens, store: store, clock: time.Now}
}

var errBadCredentials = fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthorized)

func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return TokenPair{}, fmt.Errorf("%w: email and password are required", apperr.ErrInvalidArgument)
	}

	cred, err := s.store.CredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return TokenPair{}, errBadCredentials
		}
		return TokenPair{}, err
	}
	if cred.PasswordHash == "" {
		return TokenPair{}, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return TokenPair{}, errBadCredentials
	}
	return s.tokens.IssuePair(s.clock().UTC(), cred.UserID, cred.Role)
}

// Refresh exchanges a refresh token for a new pair, re-reading the role so
// role changes take effect on the next refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return TokenPair{}, fmt.Errorf("%w: refresh_token is required", apperr.ErrInvalidArgument)
	}
	now := s.clock().UTC()
	claims, err := s.tokens.Verify(refreshToken, TokenTypeRefresh, now)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: invalid refresh token", apperr.ErrUnauthorized)
	}
	cred, err := s.store.CredentialsByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return TokenPair{}, fmt.Errorf("%w: account no longer exists", apperr.ErrUnauthorized)
		}
		return TokenPair{}, err
	}
	return s.tokens.IssuePair(now, cred.UserID, cred.Role)
}

// HashPassword is used when provisioning accounts.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

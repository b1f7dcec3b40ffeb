package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gastos/internal/core"
)

type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	GetUserByID(ctx context.Context, id int64) (core.User, error)
	EnsureDefaultCategories(ctx context.Context, userID int64) (int, error)
}

// Authenticator hashes passwords and issues bearer tokens.
type Authenticator interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	IssueToken(userID int64) (string, error)
}

type AuthService struct {
	store UserStore
	creds Authenticator
}

func NewAuthService(store UserStore, creds Authenticator) *AuthService {
	return &AuthService{store: store, creds: creds}
}

// Register creates an account seeded with the default categories.
func (s *AuthService) Register(ctx context.Context, in core.Credentials) (core.Session, error) {
	if err := in.Validate(); err != nil {
		return core.Session{}, err
	}
	email := strings.TrimSpace(*in.Email)

	hash, err := s.creds.Hash(*in.Password)
	if err != nil {
		return core.Session{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, email, hash)
	if err != nil {
		return core.Session{}, err
	}

	return s.session(user)
}

// Login verifies credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, in core.Credentials) (core.Session, error) {
	if err := in.Validate(); err != nil {
		return core.Session{}, err
	}
	email := strings.TrimSpace(*in.Email)

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return core.Session{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return core.Session{}, err
	}
	if !s.creds.Verify(*in.Password, user.PasswordHash) {
		return core.Session{}, core.ErrInvalidCredentials
	}

	// Accounts from before category seeding existed get their defaults here.
	if _, err := s.store.EnsureDefaultCategories(ctx, user.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to ensure default categories", "user_id", user.ID, "error", err)
	}

	return s.session(user)
}

func (s *AuthService) session(user core.User) (core.Session, error) {
	token, err := s.creds.IssueToken(user.ID)
	if err != nil {
		return core.Session{}, fmt.Errorf("issue token: %w", err)
	}
	return core.Session{ID: user.ID, Email: user.Email, Token: token}, nil
}

// Profile returns the caller's public identity. A valid token for a
// vanished account is treated as unauthorized.
func (s *AuthService) Profile(ctx context.Context, userID int64) (core.Profile, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Profile{}, core.ErrUnauthorized
	}
	if err != nil {
		return core.Profile{}, err
	}
	return core.Profile{ID: user.ID, Email: user.Email}, nil
}

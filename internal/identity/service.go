// Package identity owns user accounts and credential verification.
package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomkillen/koans-api/internal/domain"
)

// bcrypt cost 10 keeps hashing above casual GPU cracking capability
// without making the per-login cost prohibitive.
const hashCost = 10

// Patch is a user update with the password already hashed.
type Patch struct {
	Username     *string
	Email        *string
	PasswordHash *string
}

// Repository persists users. Implementations map case-insensitive
// uniqueness violations to domain.ErrUsernameConflict and
// domain.ErrEmailConflict, and zero-row update/delete results to
// domain.ErrUserNotFound. Delete cascades the user's completion
// records.
type Repository interface {
	Insert(ctx context.Context, user domain.User) error
	// Find returns nil when no user matches; absence is not an error
	// because existence checks are routine.
	Find(ctx context.Context, id domain.Identity) (*domain.User, error)
	Update(ctx context.Context, id domain.Identity, patch Patch) error
	Delete(ctx context.Context, id domain.Identity) error
}

// Service validates and orchestrates account operations. It is not the
// role of this service to decide whether operations are authorized.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateUserInfo is the registration payload.
type CreateUserInfo struct {
	Username string
	Email    string
	Password string
	Roles    []string
}

// CreateUser registers a user, storing only the password hash. Fails
// with domain.ErrUsernameConflict or domain.ErrEmailConflict on
// case-insensitive collision.
func (s *Service) CreateUser(ctx context.Context, info CreateUserInfo) (string, error) {
	if strings.TrimSpace(info.Username) == "" {
		return "", fmt.Errorf("%w: username is required", domain.ErrMalformedRequest)
	}
	if !domain.IsValidEmail(info.Email) {
		return "", fmt.Errorf("%w: email is malformed", domain.ErrMalformedRequest)
	}
	if info.Password == "" {
		return "", fmt.Errorf("%w: password is required", domain.ErrMalformedRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(info.Password), hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	roles := info.Roles
	if roles == nil {
		roles = []string{}
	}
	user := domain.User{
		ID:           uuid.NewString(),
		Created:      time.Now().UTC(),
		Username:     info.Username,
		Email:        info.Email,
		PasswordHash: string(hash),
		Roles:        roles,
	}
	if err := s.repo.Insert(ctx, user); err != nil {
		return "", err
	}
	return user.ID, nil
}

// GetUser looks a user up by id, username, or email. Returns nil when
// absent.
func (s *Service) GetUser(ctx context.Context, id domain.Identity) (*domain.User, error) {
	return s.repo.Find(ctx, id)
}

// GetUserWithCredentials verifies the password for the identified user.
// Both "no such user" and "wrong password" fail with the same
// domain.ErrUserNotFound so the error gives no account-enumeration
// signal; response timing may still differ.
func (s *Service) GetUserWithCredentials(ctx context.Context, id domain.Identity, password string) (*domain.User, error) {
	user, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

// UpdateUser applies a partial profile update, re-hashing the password
// when it changes. Fails with the conflict sentinels on collision and
// domain.ErrUserNotFound when no user matched.
func (s *Service) UpdateUser(ctx context.Context, id domain.Identity, update domain.UserUpdate) error {
	if update.IsZero() {
		return fmt.Errorf("%w: empty update", domain.ErrMalformedRequest)
	}
	if update.Username != nil && strings.TrimSpace(*update.Username) == "" {
		return fmt.Errorf("%w: username cannot be empty", domain.ErrMalformedRequest)
	}
	if update.Email != nil && !domain.IsValidEmail(*update.Email) {
		return fmt.Errorf("%w: email is malformed", domain.ErrMalformedRequest)
	}

	patch := Patch{Username: update.Username, Email: update.Email}
	if update.Password != nil {
		if *update.Password == "" {
			return fmt.Errorf("%w: password cannot be empty", domain.ErrMalformedRequest)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*update.Password), hashCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		hashed := string(hash)
		patch.PasswordHash = &hashed
	}
	return s.repo.Update(ctx, id, patch)
}

// DeleteUser removes the account and all of its completion records.
// Fails with domain.ErrUserNotFound when absent.
func (s *Service) DeleteUser(ctx context.Context, id domain.Identity) error {
	return s.repo.Delete(ctx, id)
}

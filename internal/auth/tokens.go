// Package auth issues and validates the signed identity tokens used by
// the HTTP layer, and provides the bearer middleware.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomkillen/koans-api/internal/domain"
)

// DefaultTokenTTL is the token lifetime applied when Config.TTL is
// unset.
const DefaultTokenTTL = 8 * time.Hour

// Config holds signing and verification parameters.
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// Claims is the normalized identity extracted from a token. Roles is
// always non-nil; an empty slice means a regular user.
type Claims struct {
	UserID    string
	Roles     []string
	ExpiresAt time.Time
}

// IsAdmin reports whether the claims carry the admin role.
func (c *Claims) IsAdmin() bool {
	if c == nil {
		return false
	}
	for _, role := range c.Roles {
		if role == domain.RoleAdmin {
			return true
		}
	}
	return false
}

// ErrMissingToken is returned when the Authorization header is absent.
var ErrMissingToken = errors.New("missing bearer token")

// ErrInvalidToken wraps parsing/validation errors.
var ErrInvalidToken = errors.New("invalid bearer token")

// tokenClaims is the wire shape of a token. Roles is serialized even
// when empty so claim presence never varies with content.
type tokenClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// CredentialChecker verifies a password for an identified user;
// satisfied by the identity service.
type CredentialChecker interface {
	GetUserWithCredentials(ctx context.Context, id domain.Identity, password string) (*domain.User, error)
}

// Service exchanges credentials for tokens and tokens for claims.
type Service struct {
	cfg   Config
	users CredentialChecker
}

// NewService constructs a Service.
func NewService(cfg Config, users CredentialChecker) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	return &Service{cfg: cfg, users: users}
}

// GetAuthTokenForUser checks the credentials via the identity service
// and issues a signed token embedding the user id and roles. Fails with
// domain.ErrUserNotFound for any credential failure.
func (s *Service) GetAuthTokenForUser(ctx context.Context, id domain.Identity, password string) (string, error) {
	user, err := s.users.GetUserWithCredentials(ctx, id, password)
	if err != nil {
		return "", err
	}
	return s.issue(user)
}

func (s *Service) issue(user *domain.User) (string, error) {
	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}
	now := time.Now().UTC()
	claims := tokenClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// GetUserIdentity verifies the token's signature, issuer, audience, and
// expiry, and returns the embedded identity.
func (s *Service) GetUserIdentity(token string) (*Claims, error) {
	return ParseToken(token, s.cfg)
}

// ParseToken validates a token against cfg and returns normalized
// claims.
func ParseToken(token string, cfg Config) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	},
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	roles := claims.Roles
	if roles == nil {
		roles = []string{}
	}
	return &Claims{
		UserID:    claims.Subject,
		Roles:     roles,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

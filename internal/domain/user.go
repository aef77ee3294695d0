package domain

import (
	"regexp"
	"time"
)

// RoleAdmin grants catalog curation rights. Users without roles are
// regular users with basic access.
const RoleAdmin = "admin"

// User is a registered account. PasswordHash is the only stored form of
// the password.
type User struct {
	ID           string
	Created      time.Time
	Username     string
	Email        string
	PasswordHash string
	Roles        []string
}

// HasRole reports whether the user carries the given role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// UserUpdate is a partial patch of a user's profile. Password is the
// plaintext replacement; hashing happens before persistence.
type UserUpdate struct {
	Username *string
	Email    *string
	Password *string
}

// IsZero reports whether the patch changes nothing.
func (u UserUpdate) IsZero() bool {
	return u.Username == nil && u.Email == nil && u.Password == nil
}

var emailPattern = regexp.MustCompile(`^[\w\-.]+@([\w\-]+\.)+[\w\-]{2,4}$`)

// IsValidEmail reports whether s has acceptable email syntax.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

package domain

import "errors"

// Domain-predictable failures are surfaced as these sentinels so the
// HTTP layer can map each one to a status. Anything else propagates as
// an internal fault and is reported generically.
var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrTitleConflict indicates a case-insensitive title collision.
	ErrTitleConflict = errors.New("an activity with that title already exists")
	// ErrCategoryNotFound is returned when no activity carries the category.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrUserNotFound is returned for missing users and, deliberately,
	// for failed credential checks so the two are indistinguishable.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameConflict indicates a case-insensitive username collision.
	ErrUsernameConflict = errors.New("username in use")
	// ErrEmailConflict indicates a case-insensitive email collision.
	ErrEmailConflict = errors.New("email in use")

	// ErrAlreadyComplete indicates the (user, activity) pair is already
	// marked complete.
	ErrAlreadyComplete = errors.New("activity already completed")
	// ErrAlreadyNotComplete indicates there was no completion to remove.
	ErrAlreadyNotComplete = errors.New("activity already uncompleted")

	// ErrMalformedRequest wraps input validation failures.
	ErrMalformedRequest = errors.New("malformed request")
)

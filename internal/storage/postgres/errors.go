package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tomkillen/koans-api/internal/domain"
)

const uniqueViolation = "23505"

// mapConstraint translates unique violations into domain sentinels by
// constraint name. Other errors pass through untouched.
func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case "activities_title_unique":
		return domain.ErrTitleConflict
	case "users_username_unique":
		return domain.ErrUsernameConflict
	case "users_email_unique":
		return domain.ErrEmailConflict
	case "user_activities_pair_unique":
		return domain.ErrAlreadyComplete
	}
	return err
}

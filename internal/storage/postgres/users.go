package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomkillen/koans-api/internal/domain"
	"github.com/tomkillen/koans-api/internal/identity"
	"github.com/tomkillen/koans-api/internal/observability"
)

const userColumns = "id, created, username, email, password_hash, roles"

// UserRepository provides Postgres-backed persistence for user
// accounts.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Insert persists a new user.
func (r *UserRepository) Insert(ctx context.Context, user domain.User) error {
	const stmt = `INSERT INTO users (id, created, username, email, password_hash, roles)
        VALUES ($1,$2,$3,$4,$5,$6)`

	_, err := r.pool.Exec(ctx, stmt,
		user.ID,
		user.Created,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Roles,
	)
	return mapConstraint(err)
}

// Find resolves a user by the tagged identity, or nil when absent.
// Username and email match case-insensitively.
func (r *UserRepository) Find(ctx context.Context, id domain.Identity) (*domain.User, error) {
	stmt := `SELECT ` + userColumns + ` FROM users WHERE ` + identityCondition(id.Kind)

	row := r.pool.QueryRow(ctx, stmt, id.Value)
	var user domain.User
	err := row.Scan(&user.ID, &user.Created, &user.Username, &user.Email, &user.PasswordHash, &user.Roles)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Update patches the user resolved by id.
func (r *UserRepository) Update(ctx context.Context, id domain.Identity, patch identity.Patch) error {
	var assignments []string
	var args []any
	assign := func(column string, value any) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if patch.Username != nil {
		assign("username", *patch.Username)
	}
	if patch.Email != nil {
		assign("email", *patch.Email)
	}
	if patch.PasswordHash != nil {
		assign("password_hash", *patch.PasswordHash)
	}

	args = append(args, id.Value)
	stmt := fmt.Sprintf(`UPDATE users SET %s WHERE %s`,
		strings.Join(assignments, ", "), identityConditionAt(id.Kind, len(args)))

	tag, err := r.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return mapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Delete removes the user and their completion records in one
// transaction.
func (r *UserRepository) Delete(ctx context.Context, id domain.Identity) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	stmt := `DELETE FROM users WHERE ` + identityCondition(id.Kind) + ` RETURNING id`
	var userID string
	if err := tx.QueryRow(ctx, stmt, id.Value).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		return err
	}

	cascade, err := tx.Exec(ctx, `DELETE FROM user_activities WHERE user_id=$1`, userID)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordCascade("user_delete", cascade.RowsAffected())
	return nil
}

func identityCondition(kind domain.IdentityKind) string {
	return identityConditionAt(kind, 1)
}

func identityConditionAt(kind domain.IdentityKind, position int) string {
	switch kind {
	case domain.IdentityByUsername:
		return fmt.Sprintf("lower(username)=lower($%d)", position)
	case domain.IdentityByEmail:
		return fmt.Sprintf("lower(email)=lower($%d)", position)
	default:
		return fmt.Sprintf("id=$%d", position)
	}
}

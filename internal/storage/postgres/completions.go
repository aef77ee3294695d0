package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomkillen/koans-api/internal/domain"
	"github.com/tomkillen/koans-api/internal/query"
)

const completionColumns = "id, user_id, activity_id, created, title, category, description, duration, difficulty, content"

// CompletionRepository provides Postgres-backed persistence for
// completion records. Each record carries the full denormalized
// activity snapshot.
type CompletionRepository struct {
	pool *pgxpool.Pool
}

// NewCompletionRepository constructs a CompletionRepository.
func NewCompletionRepository(pool *pgxpool.Pool) *CompletionRepository {
	return &CompletionRepository{pool: pool}
}

// Insert persists a completion record. The unique index on the
// (user_id, activity_id) pair enforces at-most-once.
func (r *CompletionRepository) Insert(ctx context.Context, record domain.UserActivity) error {
	const stmt = `INSERT INTO user_activities (id, user_id, activity_id, created, title, category, description, duration, difficulty, content)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	_, err := r.pool.Exec(ctx, stmt,
		record.ID,
		record.UserID,
		record.ActivityID,
		record.Created,
		record.Title,
		record.Category,
		record.Description,
		record.Duration,
		record.Difficulty,
		record.Content,
	)
	return mapConstraint(err)
}

// Delete removes the record for the pair, reporting how many records
// were removed.
func (r *CompletionRepository) Delete(ctx context.Context, userID, activityID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_activities WHERE user_id=$1 AND activity_id=$2`, userID, activityID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Get retrieves the record for the pair, or nil when absent.
func (r *CompletionRepository) Get(ctx context.Context, userID, activityID string) (*domain.UserActivity, error) {
	const stmt = `SELECT ` + completionColumns + ` FROM user_activities WHERE user_id=$1 AND activity_id=$2`

	row := r.pool.QueryRow(ctx, stmt, userID, activityID)
	record, err := scanCompletion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// List runs the compiled filter over one user's completion records,
// with the same snapshot-consistent count and page as the catalog.
func (r *CompletionRepository) List(ctx context.Context, userID string, filter query.Filter) (domain.ActivityPage, error) {
	plan := query.Compile(filter, query.Scoped("user_id", userID))
	page := domain.ActivityPage{Page: plan.Page, PageSize: plan.PageSize}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return page, err
	}
	defer tx.Rollback(ctx)

	countStmt := `SELECT count(*) FROM user_activities` + plan.WhereClause()
	if err := tx.QueryRow(ctx, countStmt, plan.Args...).Scan(&page.Total); err != nil {
		return page, err
	}

	// Completed listings surface the activity, keyed by activity id.
	pageStmt := `SELECT activity_id, created, title, category, description, duration, difficulty, content FROM user_activities` +
		plan.WhereClause() + plan.OrderByClause() + plan.WindowClause()
	rows, err := tx.Query(ctx, pageStmt, plan.Args...)
	if err != nil {
		return page, err
	}
	defer rows.Close()

	page.Activities = make([]domain.Activity, 0, plan.Limit)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return page, err
		}
		page.Activities = append(page.Activities, activity)
	}
	if err := rows.Err(); err != nil {
		return page, err
	}

	if err := tx.Commit(ctx); err != nil {
		return page, err
	}
	return page, nil
}

func scanCompletion(row pgx.Row) (domain.UserActivity, error) {
	var record domain.UserActivity
	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.ActivityID,
		&record.Created,
		&record.Title,
		&record.Category,
		&record.Description,
		&record.Duration,
		&record.Difficulty,
		&record.Content,
	)
	return record, err
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomkillen/koans-api/internal/domain"
	"github.com/tomkillen/koans-api/internal/observability"
	"github.com/tomkillen/koans-api/internal/query"
)

const activityColumns = "id, created, title, category, description, duration, difficulty, content"

// ActivityRepository provides Postgres-backed persistence for the
// activity catalog, including the cascades that keep denormalized
// completion records consistent.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// Insert persists a new activity.
func (r *ActivityRepository) Insert(ctx context.Context, activity domain.Activity) error {
	const stmt = `INSERT INTO activities (id, created, title, category, description, duration, difficulty, content)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err := r.pool.Exec(ctx, stmt,
		activity.ID,
		activity.Created,
		activity.Title,
		activity.Category,
		activity.Description,
		activity.Duration,
		activity.Difficulty,
		activity.Content,
	)
	if err != nil {
		return mapConstraint(err)
	}
	observability.RecordCatalogWrite("insert", time.Now().UTC())
	return nil
}

// Get retrieves an activity by id, or nil when absent.
func (r *ActivityRepository) Get(ctx context.Context, id string) (*domain.Activity, error) {
	const stmt = `SELECT ` + activityColumns + ` FROM activities WHERE id=$1`

	row := r.pool.QueryRow(ctx, stmt, id)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &activity, nil
}

// List runs the compiled filter. Count and page execute inside one
// repeatable-read read-only transaction so the total always describes
// the same snapshot the page came from.
func (r *ActivityRepository) List(ctx context.Context, filter query.Filter) (domain.ActivityPage, error) {
	plan := query.Compile(filter)
	page := domain.ActivityPage{Page: plan.Page, PageSize: plan.PageSize}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return page, err
	}
	defer tx.Rollback(ctx)

	countStmt := `SELECT count(*) FROM activities` + plan.WhereClause()
	if err := tx.QueryRow(ctx, countStmt, plan.Args...).Scan(&page.Total); err != nil {
		return page, err
	}

	pageStmt := `SELECT ` + activityColumns + ` FROM activities` +
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

// Categories aggregates the catalog by literal category name.
func (r *ActivityRepository) Categories(ctx context.Context, page, pageSize int, order query.Order) (domain.CategoryPage, error) {
	result := domain.CategoryPage{Page: page, PageSize: pageSize}

	direction := "ASC"
	if order == query.Desc {
		direction = "DESC"
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return result, err
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx, `SELECT count(DISTINCT category) FROM activities`).Scan(&result.Total); err != nil {
		return result, err
	}

	stmt := fmt.Sprintf(`SELECT category, count(*) FROM activities
        GROUP BY category ORDER BY category %s OFFSET $1 LIMIT $2`, direction)
	rows, err := tx.Query(ctx, stmt, (page-1)*pageSize, pageSize)
	if err != nil {
		return result, err
	}
	defer rows.Close()

	result.Categories = make([]domain.Category, 0, pageSize)
	for rows.Next() {
		var category domain.Category
		if err := rows.Scan(&category.Name, &category.Count); err != nil {
			return result, err
		}
		result.Categories = append(result.Categories, category)
	}
	if err := rows.Err(); err != nil {
		return result, err
	}

	if err := tx.Commit(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// Update patches an activity and refreshes the denormalized copies on
// completion records inside the same transaction.
func (r *ActivityRepository) Update(ctx context.Context, id string, update domain.ActivityUpdate) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	assignments, args := updateAssignments(update)
	args = append(args, id)
	stmt := fmt.Sprintf(`UPDATE activities SET %s WHERE id=$%d
        RETURNING title, category, description, duration, difficulty, content`,
		strings.Join(assignments, ", "), len(args))

	var info domain.ActivityInfo
	err = tx.QueryRow(ctx, stmt, args...).Scan(
		&info.Title, &info.Category, &info.Description, &info.Duration, &info.Difficulty, &info.Content,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrActivityNotFound
		}
		return mapConstraint(err)
	}

	// Any change rewrites the full snapshot; reconciling a copy that is
	// already current is harmless.
	const reconcile = `UPDATE user_activities
        SET title=$1, category=$2, description=$3, duration=$4, difficulty=$5, content=$6
        WHERE activity_id=$7`
	tag, err := tx.Exec(ctx, reconcile,
		info.Title, info.Category, info.Description, info.Duration, info.Difficulty, info.Content, id)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordCatalogWrite("update", time.Now().UTC())
	observability.RecordCascade("activity_update", tag.RowsAffected())
	return nil
}

// Delete removes an activity and every completion record referencing it.
func (r *ActivityRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM activities WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrActivityNotFound
	}

	cascade, err := tx.Exec(ctx, `DELETE FROM user_activities WHERE activity_id=$1`, id)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordCatalogWrite("delete", time.Now().UTC())
	observability.RecordCascade("activity_delete", cascade.RowsAffected())
	return nil
}

// DeleteCategory removes every activity in the category, matching
// case-insensitively, and cascades to completion records.
func (r *ActivityRepository) DeleteCategory(ctx context.Context, name string) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM activities WHERE lower(category)=lower($1)`, name)
	if err != nil {
		return 0, err
	}
	deleted := tag.RowsAffected()
	if deleted == 0 {
		return 0, domain.ErrCategoryNotFound
	}

	cascade, err := tx.Exec(ctx, `DELETE FROM user_activities WHERE lower(category)=lower($1)`, name)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	observability.RecordCatalogWrite("delete_category", time.Now().UTC())
	observability.RecordCascade("category_delete", cascade.RowsAffected())
	return deleted, nil
}

// RenameCategory renames every activity in the category, matching
// case-insensitively, and cascades to completion records.
func (r *ActivityRepository) RenameCategory(ctx context.Context, oldName, newName string) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE activities SET category=$2 WHERE lower(category)=lower($1)`, oldName, newName)
	if err != nil {
		return 0, err
	}
	renamed := tag.RowsAffected()
	if renamed == 0 {
		return 0, domain.ErrCategoryNotFound
	}

	cascade, err := tx.Exec(ctx, `UPDATE user_activities SET category=$2 WHERE lower(category)=lower($1)`, oldName, newName)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	observability.RecordCatalogWrite("rename_category", time.Now().UTC())
	observability.RecordCascade("category_rename", cascade.RowsAffected())
	return renamed, nil
}

func updateAssignments(update domain.ActivityUpdate) ([]string, []any) {
	var assignments []string
	var args []any
	assign := func(column string, value any) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	if update.Title != nil {
		assign("title", *update.Title)
	}
	if update.Category != nil {
		assign("category", *update.Category)
	}
	if update.Description != nil {
		assign("description", *update.Description)
	}
	if update.Duration != nil {
		assign("duration", *update.Duration)
	}
	if update.Difficulty != nil {
		assign("difficulty", *update.Difficulty)
	}
	if update.Content != nil {
		assign("content", *update.Content)
	}
	return assignments, args
}

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var activity domain.Activity
	err := row.Scan(
		&activity.ID,
		&activity.Created,
		&activity.Title,
		&activity.Category,
		&activity.Description,
		&activity.Duration,
		&activity.Difficulty,
		&activity.Content,
	)
	return activity, err
}

// Package catalog owns the activity catalog: create/read/update/delete,
// category bulk operations, and the filtered/paginated listing.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomkillen/koans-api/internal/domain"
	"github.com/tomkillen/koans-api/internal/query"
)

// Repository captures catalog persistence. Implementations map storage
// uniqueness violations to domain.ErrTitleConflict and zero-row bulk
// results to the matching not-found sentinel. Mutations that affect
// denormalized completion records cascade within the same unit of work.
type Repository interface {
	Insert(ctx context.Context, activity domain.Activity) error
	// Get returns nil when no activity has the id.
	Get(ctx context.Context, id string) (*domain.Activity, error)
	List(ctx context.Context, filter query.Filter) (domain.ActivityPage, error)
	Categories(ctx context.Context, page, pageSize int, order query.Order) (domain.CategoryPage, error)
	Update(ctx context.Context, id string, update domain.ActivityUpdate) error
	Delete(ctx context.Context, id string) error
	DeleteCategory(ctx context.Context, name string) (int64, error)
	RenameCategory(ctx context.Context, oldName, newName string) (int64, error)
}

// Service validates catalog requests and delegates persistence. It does
// not decide whether operations are authorized.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateActivity inserts a new activity and returns its id. Fails with
// domain.ErrTitleConflict when the title collides case-insensitively.
func (s *Service) CreateActivity(ctx context.Context, info domain.ActivityInfo) (string, error) {
	if err := info.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedRequest, err)
	}

	activity := domain.Activity{
		ID:           uuid.NewString(),
		Created:      time.Now().UTC(),
		ActivityInfo: info,
	}
	if err := s.repo.Insert(ctx, activity); err != nil {
		return "", err
	}
	return activity.ID, nil
}

// GetActivity fetches by id, failing with domain.ErrActivityNotFound
// when absent.
func (s *Service) GetActivity(ctx context.Context, id string) (*domain.Activity, error) {
	activity, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, domain.ErrActivityNotFound
	}
	return activity, nil
}

// GetActivities runs a filtered, sorted, paginated listing.
func (s *Service) GetActivities(ctx context.Context, filter query.Filter) (domain.ActivityPage, error) {
	return s.repo.List(ctx, filter)
}

// GetCategories aggregates activities by category name.
func (s *Service) GetCategories(ctx context.Context, page, pageSize int, order query.Order) (domain.CategoryPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = query.DefaultCategoryPageSize
	}
	if pageSize < 1 {
		pageSize = 1
	}
	return s.repo.Categories(ctx, page, pageSize, order)
}

// UpdateActivity applies a partial update and reconciles the
// denormalized completion snapshots for the activity. Fails with
// domain.ErrActivityNotFound when no activity matched and
// domain.ErrTitleConflict when the new title collides with another
// activity.
func (s *Service) UpdateActivity(ctx context.Context, id string, update domain.ActivityUpdate) error {
	if update.IsZero() {
		return fmt.Errorf("%w: empty update", domain.ErrMalformedRequest)
	}
	if err := validateUpdate(update); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedRequest, err)
	}
	return s.repo.Update(ctx, id, update)
}

// DeleteActivity removes the activity and every completion record that
// references it.
func (s *Service) DeleteActivity(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// DeleteCategory bulk-deletes all activities in the category along with
// their completion records and returns the number of activities
// removed. Fails with domain.ErrCategoryNotFound when nothing matched.
func (s *Service) DeleteCategory(ctx context.Context, name string) (int64, error) {
	return s.repo.DeleteCategory(ctx, name)
}

// RenameCategory bulk-updates the category on all matching activities
// and their completion records and returns the number of activities
// renamed. Fails with domain.ErrCategoryNotFound when nothing matched.
func (s *Service) RenameCategory(ctx context.Context, oldName, newName string) (int64, error) {
	if newName == "" {
		return 0, fmt.Errorf("%w: new category name is required", domain.ErrMalformedRequest)
	}
	return s.repo.RenameCategory(ctx, oldName, newName)
}

func validateUpdate(update domain.ActivityUpdate) error {
	if update.Title != nil && *update.Title == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if update.Category != nil && *update.Category == "" {
		return fmt.Errorf("category cannot be empty")
	}
	if update.Description != nil && *update.Description == "" {
		return fmt.Errorf("description cannot be empty")
	}
	if update.Content != nil && *update.Content == "" {
		return fmt.Errorf("content cannot be empty")
	}
	if update.Duration != nil && *update.Duration < 0 {
		return fmt.Errorf("duration must not be negative")
	}
	if update.Difficulty != nil && !domain.IsDifficultyValue(*update.Difficulty) {
		return fmt.Errorf("difficulty out of range")
	}
	return nil
}

// Package completion tracks which activities each user has completed.
// Completion records are denormalized copies of the source activity;
// the record's existence is the completion flag.
package completion

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tomkillen/koans-api/internal/domain"
	"github.com/tomkillen/koans-api/internal/query"
)

// Repository persists completion records. Insert maps the compound
// (user_id, activity_id) uniqueness violation to
// domain.ErrAlreadyComplete so concurrent completion attempts collapse
// to one success at the storage layer.
type Repository interface {
	Insert(ctx context.Context, record domain.UserActivity) error
	// Delete returns the number of records removed.
	Delete(ctx context.Context, userID, activityID string) (int64, error)
	// Get returns nil when the pair has no completion record.
	Get(ctx context.Context, userID, activityID string) (*domain.UserActivity, error)
	List(ctx context.Context, userID string, filter query.Filter) (domain.ActivityPage, error)
}

// UserFinder resolves users; satisfied by the identity repository.
type UserFinder interface {
	Find(ctx context.Context, id domain.Identity) (*domain.User, error)
}

// ActivityFinder resolves activities; satisfied by the catalog
// repository.
type ActivityFinder interface {
	Get(ctx context.Context, id string) (*domain.Activity, error)
}

// Service owns the completion workflow. It verifies both sides of the
// (user, activity) pair exist before inserting and relies on the
// storage uniqueness constraint, not a pre-check, for at-most-once.
type Service struct {
	records    Repository
	users      UserFinder
	activities ActivityFinder
}

// NewService constructs a Service.
func NewService(records Repository, users UserFinder, activities ActivityFinder) *Service {
	return &Service{records: records, users: users, activities: activities}
}

// CompleteActivity marks the activity complete for the user, copying
// the activity's current fields onto the record. Fails with
// domain.ErrUserNotFound, domain.ErrActivityNotFound, or
// domain.ErrAlreadyComplete.
func (s *Service) CompleteActivity(ctx context.Context, userID, activityID string) error {
	user, err := s.users.Find(ctx, domain.ByID(userID))
	if err != nil {
		return err
	}
	if user == nil {
		return domain.ErrUserNotFound
	}

	activity, err := s.activities.Get(ctx, activityID)
	if err != nil {
		return err
	}
	if activity == nil {
		return domain.ErrActivityNotFound
	}

	return s.records.Insert(ctx, domain.UserActivity{
		ID:           uuid.NewString(),
		UserID:       userID,
		ActivityID:   activityID,
		Created:      time.Now().UTC(),
		ActivityInfo: activity.ActivityInfo,
	})
}

// UncompleteActivity removes the completion record, failing with
// domain.ErrAlreadyNotComplete when none existed.
func (s *Service) UncompleteActivity(ctx context.Context, userID, activityID string) error {
	deleted, err := s.records.Delete(ctx, userID, activityID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return domain.ErrAlreadyNotComplete
	}
	return nil
}

// GetUserActivity returns the denormalized record, or nil when the
// activity is not complete for the user.
func (s *Service) GetUserActivity(ctx context.Context, userID, activityID string) (*domain.UserActivity, error) {
	return s.records.Get(ctx, userID, activityID)
}

// IsActivityComplete reports whether a completion record exists.
func (s *Service) IsActivityComplete(ctx context.Context, userID, activityID string) (bool, error) {
	record, err := s.records.Get(ctx, userID, activityID)
	if err != nil {
		return false, err
	}
	return record != nil, nil
}

// GetCompletedActivities lists the user's completed activities with the
// same filter contract as the catalog listing.
func (s *Service) GetCompletedActivities(ctx context.Context, userID string, filter query.Filter) (domain.ActivityPage, error) {
	return s.records.List(ctx, userID, filter)
}

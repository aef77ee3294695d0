// Package domain defines the entities and business rules shared by the
// catalog, completion, and identity services.
package domain

import (
	"errors"
	"strings"
	"time"
)

// ActivityInfo holds the caller-supplied fields of an activity. The same
// shape is denormalized onto completion records.
type ActivityInfo struct {
	Title       string
	Category    string
	Description string
	// Duration of the activity in seconds.
	Duration int
	// Difficulty rating between MinDifficulty and MaxDifficulty.
	Difficulty int
	Content    string
}

// Activity is a catalog item representing a wellness exercise.
type Activity struct {
	ID      string
	Created time.Time
	ActivityInfo
}

// ActivityUpdate is a partial patch of ActivityInfo. Nil fields are left
// untouched.
type ActivityUpdate struct {
	Title       *string
	Category    *string
	Description *string
	Duration    *int
	Difficulty  *int
	Content     *string
}

// IsZero reports whether the patch changes nothing.
func (u ActivityUpdate) IsZero() bool {
	return u.Title == nil && u.Category == nil && u.Description == nil &&
		u.Duration == nil && u.Difficulty == nil && u.Content == nil
}

// UserActivity is the denormalized record marking an activity complete
// for a user. Its existence is the completion flag; the activity fields
// are a cached copy kept in sync by cascades from catalog mutations.
type UserActivity struct {
	ID         string
	UserID     string
	ActivityID string
	Created    time.Time
	ActivityInfo
}

// Category is the derived grouping of activities by their category
// field; it is never stored as its own document.
type Category struct {
	Name  string
	Count int
}

// ActivityPage is one page of a filtered listing plus the total number
// of matches, both read from a single consistent snapshot.
type ActivityPage struct {
	Page       int
	PageSize   int
	Total      int
	Activities []Activity
}

// CategoryPage is one page of the category aggregation.
type CategoryPage struct {
	Page       int
	PageSize   int
	Total      int
	Categories []Category
}

// Validate checks the invariants enforced on catalog writes.
func (info ActivityInfo) Validate() error {
	if strings.TrimSpace(info.Title) == "" {
		return errors.New("title is required")
	}
	if strings.TrimSpace(info.Category) == "" {
		return errors.New("category is required")
	}
	if strings.TrimSpace(info.Description) == "" {
		return errors.New("description is required")
	}
	if strings.TrimSpace(info.Content) == "" {
		return errors.New("content is required")
	}
	if info.Duration < 0 {
		return errors.New("duration must not be negative")
	}
	if !IsDifficultyValue(info.Difficulty) {
		return errors.New("difficulty out of range")
	}
	return nil
}

// Package memory provides an in-memory store for local development and
// unit tests. Its three repository views implement the catalog,
// completion, and identity repository contracts with the same error
// semantics as the Postgres store, including cascades, which run under
// one lock so they are atomic.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tomkillen/koans-api/internal/domain"
	"github.com/tomkillen/koans-api/internal/identity"
	"github.com/tomkillen/koans-api/internal/query"
)

// Store holds all documents in maps guarded by a single mutex.
// Insertion order is tracked so listings tie-break the same way the
// database's physical order does.
type Store struct {
	mu sync.RWMutex

	activities    map[string]domain.Activity
	activityOrder []string

	users map[string]domain.User

	completions     map[string]domain.UserActivity
	completionOrder []string
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		activities:  make(map[string]domain.Activity),
		users:       make(map[string]domain.User),
		completions: make(map[string]domain.UserActivity),
	}
}

// Activities returns the catalog repository view of the store.
func (s *Store) Activities() *ActivityRepository { return &ActivityRepository{store: s} }

// Users returns the identity repository view of the store.
func (s *Store) Users() *UserRepository { return &UserRepository{store: s} }

// Completions returns the completion repository view of the store.
func (s *Store) Completions() *CompletionRepository { return &CompletionRepository{store: s} }

// ActivityRepository implements the catalog repository contract.
type ActivityRepository struct {
	store *Store
}

// Insert adds an activity, rejecting case-insensitive title collisions.
func (r *ActivityRepository) Insert(ctx context.Context, activity domain.Activity) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.activities {
		if strings.EqualFold(existing.Title, activity.Title) {
			return domain.ErrTitleConflict
		}
	}
	s.activities[activity.ID] = activity
	s.activityOrder = append(s.activityOrder, activity.ID)
	return nil
}

// Get returns the activity or nil.
func (r *ActivityRepository) Get(ctx context.Context, id string) (*domain.Activity, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	activity, ok := s.activities[id]
	if !ok {
		return nil, nil
	}
	return &activity, nil
}

// List evaluates the filter against a snapshot taken under the lock.
func (r *ActivityRepository) List(ctx context.Context, filter query.Filter) (domain.ActivityPage, error) {
	s := r.store
	s.mu.RLock()
	items := s.activitySnapshot()
	s.mu.RUnlock()

	result := query.Evaluate(items, filter, query.DefaultPageSize)
	return domain.ActivityPage{
		Page:       result.Page,
		PageSize:   result.PageSize,
		Total:      result.Total,
		Activities: result.Items,
	}, nil
}

// Categories aggregates activities by their literal category name.
func (r *ActivityRepository) Categories(ctx context.Context, page, pageSize int, order query.Order) (domain.CategoryPage, error) {
	s := r.store
	s.mu.RLock()
	counts := make(map[string]int)
	for _, activity := range s.activities {
		counts[activity.Category]++
	}
	s.mu.RUnlock()

	categories := make([]domain.Category, 0, len(counts))
	for name, count := range counts {
		categories = append(categories, domain.Category{Name: name, Count: count})
	}
	sort.Slice(categories, func(i, j int) bool {
		if order == query.Desc {
			return categories[i].Name > categories[j].Name
		}
		return categories[i].Name < categories[j].Name
	})

	total := len(categories)
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return domain.CategoryPage{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		Categories: categories[start:end],
	}, nil
}

// Update patches an activity and reconciles its completion snapshots in
// the same critical section.
func (r *ActivityRepository) Update(ctx context.Context, id string, update domain.ActivityUpdate) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	activity, ok := s.activities[id]
	if !ok {
		return domain.ErrActivityNotFound
	}

	if update.Title != nil {
		for otherID, other := range s.activities {
			if otherID != id && strings.EqualFold(other.Title, *update.Title) {
				return domain.ErrTitleConflict
			}
		}
		activity.Title = *update.Title
	}
	if update.Category != nil {
		activity.Category = *update.Category
	}
	if update.Description != nil {
		activity.Description = *update.Description
	}
	if update.Duration != nil {
		activity.Duration = *update.Duration
	}
	if update.Difficulty != nil {
		activity.Difficulty = *update.Difficulty
	}
	if update.Content != nil {
		activity.Content = *update.Content
	}
	s.activities[id] = activity

	for recordID, record := range s.completions {
		if record.ActivityID == id {
			record.ActivityInfo = activity.ActivityInfo
			s.completions[recordID] = record
		}
	}
	return nil
}

// Delete removes an activity and every completion record referencing it.
func (r *ActivityRepository) Delete(ctx context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.activities[id]; !ok {
		return domain.ErrActivityNotFound
	}
	delete(s.activities, id)
	s.activityOrder = removeID(s.activityOrder, id)

	for recordID, record := range s.completions {
		if record.ActivityID == id {
			delete(s.completions, recordID)
			s.completionOrder = removeID(s.completionOrder, recordID)
		}
	}
	return nil
}

// DeleteCategory bulk-deletes a category and cascades to completion
// records whose denormalized category matches.
func (r *ActivityRepository) DeleteCategory(ctx context.Context, name string) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, activity := range s.activities {
		if strings.EqualFold(activity.Category, name) {
			delete(s.activities, id)
			s.activityOrder = removeID(s.activityOrder, id)
			deleted++
		}
	}
	if deleted == 0 {
		return 0, domain.ErrCategoryNotFound
	}

	for recordID, record := range s.completions {
		if strings.EqualFold(record.Category, name) {
			delete(s.completions, recordID)
			s.completionOrder = removeID(s.completionOrder, recordID)
		}
	}
	return deleted, nil
}

// RenameCategory bulk-renames a category on activities and completion
// records.
func (r *ActivityRepository) RenameCategory(ctx context.Context, oldName, newName string) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var renamed int64
	for id, activity := range s.activities {
		if strings.EqualFold(activity.Category, oldName) {
			activity.Category = newName
			s.activities[id] = activity
			renamed++
		}
	}
	if renamed == 0 {
		return 0, domain.ErrCategoryNotFound
	}

	for recordID, record := range s.completions {
		if strings.EqualFold(record.Category, oldName) {
			record.Category = newName
			s.completions[recordID] = record
		}
	}
	return renamed, nil
}

// UserRepository implements the identity repository contract.
type UserRepository struct {
	store *Store
}

// Insert adds a user, rejecting case-insensitive username and email
// collisions.
func (r *UserRepository) Insert(ctx context.Context, user domain.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, user.Username) {
			return domain.ErrUsernameConflict
		}
		if strings.EqualFold(existing.Email, user.Email) {
			return domain.ErrEmailConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

// Find resolves a user by the tagged identity, or nil.
func (r *UserRepository) Find(ctx context.Context, id domain.Identity) (*domain.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.findUserLocked(id)
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// Update patches a user profile.
func (r *UserRepository) Update(ctx context.Context, id domain.Identity, patch identity.Patch) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.findUserLocked(id)
	if !ok {
		return domain.ErrUserNotFound
	}

	if patch.Username != nil {
		for otherID, other := range s.users {
			if otherID != user.ID && strings.EqualFold(other.Username, *patch.Username) {
				return domain.ErrUsernameConflict
			}
		}
		user.Username = *patch.Username
	}
	if patch.Email != nil {
		for otherID, other := range s.users {
			if otherID != user.ID && strings.EqualFold(other.Email, *patch.Email) {
				return domain.ErrEmailConflict
			}
		}
		user.Email = *patch.Email
	}
	if patch.PasswordHash != nil {
		user.PasswordHash = *patch.PasswordHash
	}
	s.users[user.ID] = user
	return nil
}

// Delete removes a user and cascades their completion records.
func (r *UserRepository) Delete(ctx context.Context, id domain.Identity) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.findUserLocked(id)
	if !ok {
		return domain.ErrUserNotFound
	}
	delete(s.users, user.ID)

	for recordID, record := range s.completions {
		if record.UserID == user.ID {
			delete(s.completions, recordID)
			s.completionOrder = removeID(s.completionOrder, recordID)
		}
	}
	return nil
}

// CompletionRepository implements the completion repository contract.
type CompletionRepository struct {
	store *Store
}

// Insert adds a completion record, enforcing at most one per
// (user, activity) pair.
func (r *CompletionRepository) Insert(ctx context.Context, record domain.UserActivity) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.completions {
		if existing.UserID == record.UserID && existing.ActivityID == record.ActivityID {
			return domain.ErrAlreadyComplete
		}
	}
	s.completions[record.ID] = record
	s.completionOrder = append(s.completionOrder, record.ID)
	return nil
}

// Delete removes the record for the pair, reporting how many records
// were removed.
func (r *CompletionRepository) Delete(ctx context.Context, userID, activityID string) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for recordID, record := range s.completions {
		if record.UserID == userID && record.ActivityID == activityID {
			delete(s.completions, recordID)
			s.completionOrder = removeID(s.completionOrder, recordID)
			deleted++
		}
	}
	return deleted, nil
}

// Get returns the record for the pair, or nil.
func (r *CompletionRepository) Get(ctx context.Context, userID, activityID string) (*domain.UserActivity, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, recordID := range s.completionOrder {
		record := s.completions[recordID]
		if record.UserID == userID && record.ActivityID == activityID {
			return &record, nil
		}
	}
	return nil, nil
}

// List evaluates the filter over one user's completion records.
func (r *CompletionRepository) List(ctx context.Context, userID string, filter query.Filter) (domain.ActivityPage, error) {
	s := r.store
	s.mu.RLock()
	items := make([]domain.Activity, 0, len(s.completionOrder))
	for _, recordID := range s.completionOrder {
		record := s.completions[recordID]
		if record.UserID != userID {
			continue
		}
		items = append(items, domain.Activity{
			ID:           record.ActivityID,
			Created:      record.Created,
			ActivityInfo: record.ActivityInfo,
		})
	}
	s.mu.RUnlock()

	result := query.Evaluate(items, filter, query.DefaultPageSize)
	return domain.ActivityPage{
		Page:       result.Page,
		PageSize:   result.PageSize,
		Total:      result.Total,
		Activities: result.Items,
	}, nil
}

func (s *Store) findUserLocked(id domain.Identity) (domain.User, bool) {
	switch id.Kind {
	case domain.IdentityByID:
		user, ok := s.users[id.Value]
		return user, ok
	case domain.IdentityByUsername:
		for _, user := range s.users {
			if strings.EqualFold(user.Username, id.Value) {
				return user, true
			}
		}
	case domain.IdentityByEmail:
		for _, user := range s.users {
			if strings.EqualFold(user.Email, id.Value) {
				return user, true
			}
		}
	}
	return domain.User{}, false
}

func (s *Store) activitySnapshot() []domain.Activity {
	items := make([]domain.Activity, 0, len(s.activityOrder))
	for _, id := range s.activityOrder {
		items = append(items, s.activities[id])
	}
	return items
}

func removeID(ids []string, id string) []string {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tomkillen/koans-api/internal/domain"
	"github.com/tomkillen/koans-api/internal/identity"
	"github.com/tomkillen/koans-api/internal/query"
)

func testActivity(id, title, category string) domain.Activity {
	return domain.Activity{
		ID:      id,
		Created: time.Now().UTC(),
		ActivityInfo: domain.ActivityInfo{
			Title:       title,
			Category:    category,
			Description: "a " + title,
			Duration:    600,
			Difficulty:  3,
			Content:     "content of " + title,
		},
	}
}

func testUser(id, username, email string) domain.User {
	return domain.User{
		ID:           id,
		Created:      time.Now().UTC(),
		Username:     username,
		Email:        email,
		PasswordHash: "$2a$10$notarealhash",
		Roles:        []string{},
	}
}

func completionFor(id string, userID string, activity domain.Activity) domain.UserActivity {
	return domain.UserActivity{
		ID:           id,
		UserID:       userID,
		ActivityID:   activity.ID,
		Created:      time.Now().UTC(),
		ActivityInfo: activity.ActivityInfo,
	}
}

func TestActivityTitleUniqueness(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Activities()

	require.NoError(t, repo.Insert(ctx, testActivity("a1", "Morning Yoga", "yoga")))
	require.ErrorIs(t, repo.Insert(ctx, testActivity("a2", "morning yoga", "yoga")), domain.ErrTitleConflict)

	// An update cannot collide with another activity's title either.
	require.NoError(t, repo.Insert(ctx, testActivity("a2", "Evening Yoga", "yoga")))
	title := "MORNING YOGA"
	err := repo.Update(ctx, "a2", domain.ActivityUpdate{Title: &title})
	require.ErrorIs(t, err, domain.ErrTitleConflict)
}

func TestActivityGetAbsentReturnsNil(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Activities()

	activity, err := repo.Get(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, activity)
}

func TestActivityUpdateReconcilesCompletionSnapshots(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	activity := testActivity("a1", "Morning Yoga", "yoga")
	require.NoError(t, store.Activities().Insert(ctx, activity))
	require.NoError(t, store.Users().Insert(ctx, testUser("u1", "alice", "alice@example.com")))
	require.NoError(t, store.Completions().Insert(ctx, completionFor("c1", "u1", activity)))

	title := "Sunrise Yoga"
	duration := 900
	err := store.Activities().Update(ctx, "a1", domain.ActivityUpdate{Title: &title, Duration: &duration})
	require.NoError(t, err)

	record, err := store.Completions().Get(ctx, "u1", "a1")
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, "Sunrise Yoga", record.Title)
	require.Equal(t, 900, record.Duration)
}

func TestActivityDeleteCascadesCompletions(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	activity := testActivity("a1", "Morning Yoga", "yoga")
	require.NoError(t, store.Activities().Insert(ctx, activity))
	require.NoError(t, store.Completions().Insert(ctx, completionFor("c1", "u1", activity)))

	require.NoError(t, store.Activities().Delete(ctx, "a1"))
	require.ErrorIs(t, store.Activities().Delete(ctx, "a1"), domain.ErrActivityNotFound)

	record, err := store.Completions().Get(ctx, "u1", "a1")
	require.NoError(t, err)
	require.Nil(t, record)
}

func TestDeleteCategoryMatchesCaseInsensitively(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Activities()
	require.NoError(t, repo.Insert(ctx, testActivity("a1", "Morning Yoga", "Yoga")))
	require.NoError(t, repo.Insert(ctx, testActivity("a2", "Evening Yoga", "yoga")))
	require.NoError(t, repo.Insert(ctx, testActivity("a3", "Box Breathing", "breathing")))
	require.NoError(t, store.Completions().Insert(ctx, completionFor("c1", "u1", testActivity("a1", "Morning Yoga", "Yoga"))))

	deleted, err := repo.DeleteCategory(ctx, "YOGA")
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)

	_, err = repo.DeleteCategory(ctx, "yoga")
	require.ErrorIs(t, err, domain.ErrCategoryNotFound)

	record, err := store.Completions().Get(ctx, "u1", "a1")
	require.NoError(t, err)
	require.Nil(t, record)

	page, err := repo.List(ctx, query.Filter{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Equal(t, "Box Breathing", page.Activities[0].Title)
}

func TestRenameCategoryCascades(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Activities()
	activity := testActivity("a1", "Morning Yoga", "yoga")
	require.NoError(t, repo.Insert(ctx, activity))
	require.NoError(t, store.Completions().Insert(ctx, completionFor("c1", "u1", activity)))

	renamed, err := repo.RenameCategory(ctx, "YOGA", "stretching")
	require.NoError(t, err)
	require.EqualValues(t, 1, renamed)

	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, "stretching", got.Category)

	record, err := store.Completions().Get(ctx, "u1", "a1")
	require.NoError(t, err)
	require.Equal(t, "stretching", record.Category)
}

func TestCategoriesAggregation(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Activities()
	require.NoError(t, repo.Insert(ctx, testActivity("a1", "Morning Yoga", "yoga")))
	require.NoError(t, repo.Insert(ctx, testActivity("a2", "Evening Yoga", "yoga")))
	require.NoError(t, repo.Insert(ctx, testActivity("a3", "Box Breathing", "breathing")))

	page, err := repo.Categories(ctx, 1, 10, query.Asc)
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Equal(t, []domain.Category{
		{Name: "breathing", Count: 1},
		{Name: "yoga", Count: 2},
	}, page.Categories)

	desc, err := repo.Categories(ctx, 1, 1, query.Desc)
	require.NoError(t, err)
	require.Equal(t, 2, desc.Total)
	require.Equal(t, []domain.Category{{Name: "yoga", Count: 2}}, desc.Categories)
}

func TestUserUniquenessAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Users()
	require.NoError(t, repo.Insert(ctx, testUser("u1", "alice", "alice@example.com")))

	require.ErrorIs(t, repo.Insert(ctx, testUser("u2", "ALICE", "other@example.com")), domain.ErrUsernameConflict)
	require.ErrorIs(t, repo.Insert(ctx, testUser("u2", "bob", "Alice@Example.com")), domain.ErrEmailConflict)

	for _, id := range []domain.Identity{
		domain.ByID("u1"),
		domain.ByUsername("Alice"),
		domain.ByEmail("ALICE@example.com"),
	} {
		user, err := repo.Find(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, user)
		require.Equal(t, "u1", user.ID)
	}

	user, err := repo.Find(ctx, domain.ByUsername("nobody"))
	require.NoError(t, err)
	require.Nil(t, user)
}

func TestUserUpdateConflicts(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Users()
	require.NoError(t, repo.Insert(ctx, testUser("u1", "alice", "alice@example.com")))
	require.NoError(t, repo.Insert(ctx, testUser("u2", "bob", "bob@example.com")))

	username := "Alice"
	err := repo.Update(ctx, domain.ByID("u2"), identity.Patch{Username: &username})
	require.ErrorIs(t, err, domain.ErrUsernameConflict)

	email := "new@example.com"
	require.NoError(t, repo.Update(ctx, domain.ByID("u2"), identity.Patch{Email: &email}))
	user, err := repo.Find(ctx, domain.ByID("u2"))
	require.NoError(t, err)
	require.Equal(t, "new@example.com", user.Email)

	err = repo.Update(ctx, domain.ByID("missing"), identity.Patch{Email: &email})
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserDeleteCascadesCompletions(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	activity := testActivity("a1", "Morning Yoga", "yoga")
	require.NoError(t, store.Activities().Insert(ctx, activity))
	require.NoError(t, store.Users().Insert(ctx, testUser("u1", "alice", "alice@example.com")))
	require.NoError(t, store.Completions().Insert(ctx, completionFor("c1", "u1", activity)))

	require.NoError(t, store.Users().Delete(ctx, domain.ByUsername("alice")))
	require.ErrorIs(t, store.Users().Delete(ctx, domain.ByUsername("alice")), domain.ErrUserNotFound)

	record, err := store.Completions().Get(ctx, "u1", "a1")
	require.NoError(t, err)
	require.Nil(t, record)
}

func TestCompletionAtMostOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	activity := testActivity("a1", "Morning Yoga", "yoga")
	repo := store.Completions()

	require.NoError(t, repo.Insert(ctx, completionFor("c1", "u1", activity)))
	require.ErrorIs(t, repo.Insert(ctx, completionFor("c2", "u1", activity)), domain.ErrAlreadyComplete)

	// A different user can complete the same activity.
	require.NoError(t, repo.Insert(ctx, completionFor("c3", "u2", activity)))

	deleted, err := repo.Delete(ctx, "u1", "a1")
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	deleted, err = repo.Delete(ctx, "u1", "a1")
	require.NoError(t, err)
	require.Zero(t, deleted)
}

func TestCompletionListFiltersByUser(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Completions()
	yoga := testActivity("a1", "Morning Yoga", "yoga")
	breathing := testActivity("a2", "Box Breathing", "breathing")

	require.NoError(t, repo.Insert(ctx, completionFor("c1", "u1", yoga)))
	require.NoError(t, repo.Insert(ctx, completionFor("c2", "u1", breathing)))
	require.NoError(t, repo.Insert(ctx, completionFor("c3", "u2", yoga)))

	page, err := repo.List(ctx, "u1", query.Filter{Categories: []string{"YOGA"}})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Equal(t, "a1", page.Activities[0].ID)

	all, err := repo.List(ctx, "u1", query.Filter{})
	require.NoError(t, err)
	require.Equal(t, 2, all.Total)
}

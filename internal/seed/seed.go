// Package seed fills a development store with sample users and
// activities so the API is explorable immediately after boot.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/tomkillen/koans-api/internal/catalog"
	"github.com/tomkillen/koans-api/internal/domain"
	"github.com/tomkillen/koans-api/internal/identity"
	"github.com/tomkillen/koans-api/internal/query"
)

// DefaultActivityCount is the catalog size Populate tops the store up to.
const DefaultActivityCount = 1000

var userSeeds = []identity.CreateUserInfo{
	{Username: "admin", Password: "admin", Email: "admin@koans.example.com", Roles: []string{domain.RoleAdmin}},
	{Username: "first", Password: "first", Email: "first@example.com"},
	{Username: "second", Password: "second", Email: "second@example.com"},
}

var categories = []string{
	"Relaxation",
	"Self-Esteem",
	"Productivity",
	"Physical Health",
	"Social Connection",
}

var loremWords = []string{
	"lorem", "ipsum", "dolor", "sit", "amet", "consectetur", "adipiscing",
	"elit", "sed", "do", "eiusmod", "tempor", "incididunt", "ut", "labore",
	"et", "dolore", "magna", "aliqua", "enim", "ad", "minim", "veniam",
	"quis", "nostrud", "exercitation", "ullamco", "laboris", "nisi",
	"aliquip", "ex", "ea", "commodo", "consequat", "duis", "aute", "irure",
	"in", "reprehenderit", "voluptate", "velit", "esse", "cillum", "fugiat",
}

// Populate ensures the sample users exist and tops the catalog up to
// count activities. Safe to run repeatedly.
func Populate(ctx context.Context, users *identity.Service, activities *catalog.Service, count int) error {
	if err := createUsers(ctx, users); err != nil {
		return err
	}
	return createActivities(ctx, activities, count)
}

func createUsers(ctx context.Context, users *identity.Service) error {
	for _, seedUser := range userSeeds {
		existing, err := users.GetUser(ctx, domain.ByUsername(seedUser.Username))
		if err != nil {
			return fmt.Errorf("seed user %s: %w", seedUser.Username, err)
		}
		if existing != nil {
			continue
		}
		if _, err := users.CreateUser(ctx, seedUser); err != nil {
			return fmt.Errorf("seed user %s: %w", seedUser.Username, err)
		}
	}
	return nil
}

func createActivities(ctx context.Context, activities *catalog.Service, count int) error {
	existing, err := activities.GetActivities(ctx, query.Filter{PageSize: 1})
	if err != nil {
		return fmt.Errorf("seed activities: %w", err)
	}

	for i := existing.Total; i < count; i++ {
		info := generateActivity(i)
		if _, err := activities.CreateActivity(ctx, info); err != nil {
			// Counter-suffixed titles can still collide with earlier
			// partial seeds; skip and move on.
			if errors.Is(err, domain.ErrTitleConflict) {
				continue
			}
			return fmt.Errorf("seed activities: %w", err)
		}
	}
	return nil
}

func generateActivity(n int) domain.ActivityInfo {
	return domain.ActivityInfo{
		Title:       fmt.Sprintf("%s (%d)", words(1, 3), n),
		Category:    categories[rand.IntN(len(categories))],
		Description: words(5, 20),
		Duration:    rand.IntN(20) + 1,
		Difficulty:  rand.IntN(domain.MaxDifficulty) + 1,
		Content:     paragraphs(1, 3),
	}
}

func words(min, max int) string {
	n := min + rand.IntN(max-min+1)
	picked := make([]string, n)
	for i := range picked {
		picked[i] = loremWords[rand.IntN(len(loremWords))]
	}
	return strings.Join(picked, " ")
}

func paragraphs(min, max int) string {
	n := min + rand.IntN(max-min+1)
	blocks := make([]string, n)
	for i := range blocks {
		blocks[i] = words(30, 60) + "."
	}
	return strings.Join(blocks, "\n\n")
}

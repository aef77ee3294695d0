package query

import (
	"sort"
	"strings"

	"github.com/tomkillen/koans-api/internal/domain"
)

// Relevance weights for the in-memory evaluator, most influential field
// first. The Postgres plan expresses the same ordering through tsvector
// weight classes.
const (
	weightTitle       = 13
	weightCategory    = 8
	weightDescription = 5
	weightContent     = 3
)

// Result is an evaluated page of activities together with the total
// number of matches.
type Result struct {
	Page     int
	PageSize int
	Total    int
	Items    []domain.Activity
}

// Evaluate runs the filter against an in-memory snapshot. Items must be
// supplied in insertion order; ties preserve that order.
func Evaluate(items []domain.Activity, f Filter, defaultPageSize int) Result {
	terms := SearchTerms(f.SearchTerm)

	type scored struct {
		activity domain.Activity
		score    int
	}
	matched := make([]scored, 0, len(items))
	for _, item := range items {
		if !matchesFilter(item.ActivityInfo, f) {
			continue
		}
		score, ok := searchScore(item.ActivityInfo, terms)
		if !ok {
			continue
		}
		matched = append(matched, scored{activity: item, score: score})
	}

	searching := len(terms) > 0
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		for _, sortBy := range f.SortBy {
			if c := compareKey(a.activity, b.activity, sortBy.Key); c != 0 {
				return (c < 0) == (sortBy.Order == Asc)
			}
		}
		if searching {
			if a.score != b.score {
				return a.score > b.score
			}
		} else if len(f.SortBy) == 0 {
			if c := compareStrings(a.activity.Title, b.activity.Title); c != 0 {
				return c < 0
			}
		}
		if !a.activity.Created.Equal(b.activity.Created) {
			return a.activity.Created.Before(b.activity.Created)
		}
		return false
	})

	page, pageSize := f.Pagination(defaultPageSize)
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	pageItems := make([]domain.Activity, 0, end-start)
	for _, m := range matched[start:end] {
		pageItems = append(pageItems, m.activity)
	}

	return Result{
		Page:     page,
		PageSize: pageSize,
		Total:    len(matched),
		Items:    pageItems,
	}
}

func matchesFilter(info domain.ActivityInfo, f Filter) bool {
	if f.Difficulty != nil && !f.Difficulty.Filter().Matches(info.Difficulty) {
		return false
	}
	if f.Duration != nil && !f.Duration.Filter().Matches(info.Duration) {
		return false
	}
	if len(f.Categories) > 0 {
		found := false
		for _, c := range f.Categories {
			if strings.EqualFold(c, info.Category) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// searchScore requires every term to match at least one field and sums
// field weights across terms. ok is always true when terms is empty.
func searchScore(info domain.ActivityInfo, terms []string) (score int, ok bool) {
	for _, term := range terms {
		termScore := 0
		if containsFold(info.Title, term) {
			termScore += weightTitle
		}
		if containsFold(info.Category, term) {
			termScore += weightCategory
		}
		if containsFold(info.Description, term) {
			termScore += weightDescription
		}
		if containsFold(info.Content, term) {
			termScore += weightContent
		}
		if termScore == 0 {
			return 0, false
		}
		score += termScore
	}
	return score, true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func compareKey(a, b domain.Activity, key SortKey) int {
	switch key {
	case SortByCreated:
		switch {
		case a.Created.Before(b.Created):
			return -1
		case a.Created.After(b.Created):
			return 1
		default:
			return 0
		}
	case SortByTitle:
		return compareStrings(a.Title, b.Title)
	case SortByCategory:
		return compareStrings(a.Category, b.Category)
	case SortByDuration:
		return compareInts(a.Duration, b.Duration)
	case SortByDifficulty:
		return compareInts(a.Difficulty, b.Difficulty)
	default:
		return 0
	}
}

func compareStrings(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

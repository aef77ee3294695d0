// Package query compiles activity list requests (filter, search, sort,
// paginate) into executable plans: a SQL plan for the Postgres store and
// an in-process evaluator used by the in-memory store.
package query

// Default pagination applied when the caller leaves page/pageSize unset.
const (
	DefaultPageSize         = 20
	DefaultCategoryPageSize = 10
)

// NumberOrRange filters a numeric field by an exact value or by an
// inclusive min/max range.
type NumberOrRange struct {
	exact *int
	min   *int
	max   *int
}

// Exactly matches values equal to n.
func Exactly(n int) NumberOrRange {
	return NumberOrRange{exact: &n}
}

// AtLeast matches values >= n.
func AtLeast(n int) NumberOrRange {
	return NumberOrRange{min: &n}
}

// AtMost matches values <= n.
func AtMost(n int) NumberOrRange {
	return NumberOrRange{max: &n}
}

// Between matches values within [min, max], bounds inclusive.
func Between(min, max int) NumberOrRange {
	return NumberOrRange{min: &min, max: &max}
}

// NumberFilter is the compiled predicate of a NumberOrRange. At most one
// of Eq or the Gte/Lte pair is set.
type NumberFilter struct {
	Eq  *int
	Gte *int
	Lte *int
}

// Filter compiles the NumberOrRange into its predicate form.
func (r NumberOrRange) Filter() NumberFilter {
	if r.exact != nil {
		return NumberFilter{Eq: r.exact}
	}
	return NumberFilter{Gte: r.min, Lte: r.max}
}

// Matches evaluates the predicate against v.
func (f NumberFilter) Matches(v int) bool {
	if f.Eq != nil && v != *f.Eq {
		return false
	}
	if f.Gte != nil && v < *f.Gte {
		return false
	}
	if f.Lte != nil && v > *f.Lte {
		return false
	}
	return true
}

// Order is a sort direction.
type Order int

const (
	Asc Order = iota
	Desc
)

// ParseOrder resolves the direction spellings accepted on the API
// ("asc", "ascending", "1", "desc", "descending", "-1").
func ParseOrder(s string) (Order, bool) {
	switch s {
	case "asc", "ascending", "1":
		return Asc, true
	case "desc", "descending", "-1":
		return Desc, true
	default:
		return Asc, false
	}
}

// SortKey names a sortable activity field.
type SortKey string

const (
	SortByCreated    SortKey = "created"
	SortByTitle      SortKey = "title"
	SortByCategory   SortKey = "category"
	SortByDuration   SortKey = "duration"
	SortByDifficulty SortKey = "difficulty"
)

// ParseSortKey validates a caller-supplied sort key.
func ParseSortKey(s string) (SortKey, bool) {
	switch SortKey(s) {
	case SortByCreated, SortByTitle, SortByCategory, SortByDuration, SortByDifficulty:
		return SortKey(s), true
	default:
		return "", false
	}
}

// SortBy pairs a sort key with its direction.
type SortBy struct {
	Key   SortKey
	Order Order
}

// Filter is a structured activity list request. The zero value lists
// everything with default pagination, sorted by title ascending.
type Filter struct {
	// SearchTerm is tokenized on whitespace with double-quoted phrases
	// kept together; every token must match.
	SearchTerm string
	// Categories match any (single-element slice behaves as exact match).
	Categories []string
	Duration   *NumberOrRange
	Difficulty *NumberOrRange
	// SortBy is applied first to last. When empty, results sort by
	// relevance if searching, otherwise by title ascending.
	SortBy   []SortBy
	Page     int
	PageSize int
}

// Pagination resolves the page window, flooring non-positive values at 1
// and applying defaults.
func (f Filter) Pagination(defaultPageSize int) (page, pageSize int) {
	page = f.Page
	if page < 1 {
		page = 1
	}
	pageSize = f.PageSize
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if pageSize < 1 {
		pageSize = 1
	}
	return page, pageSize
}

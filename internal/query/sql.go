package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Plan is a Filter compiled for the Postgres store: predicate, sort
// specification, and pagination window. The count path and the page
// path share the same predicate and argument list.
type Plan struct {
	// Args are the positional query arguments referenced by the
	// predicate and sort expressions.
	Args []any

	conditions []string
	orderBy    []string

	Page     int
	PageSize int
	Offset   int
	Limit    int
}

// PlanOption adjusts plan compilation.
type PlanOption func(*planBuilder)

// Scoped constrains the plan to rows where column equals value. Used to
// scope completion listings to one user.
func Scoped(column string, value any) PlanOption {
	return func(b *planBuilder) {
		b.scopes = append(b.scopes, scopeCondition{column: column, value: value})
	}
}

// WithDefaultPageSize overrides the page size applied when the filter
// leaves it unset.
func WithDefaultPageSize(n int) PlanOption {
	return func(b *planBuilder) {
		b.defaultPageSize = n
	}
}

type scopeCondition struct {
	column string
	value  any
}

type planBuilder struct {
	defaultPageSize int
	scopes          []scopeCondition
	args            []any
}

// arg binds a value and returns its positional placeholder.
func (b *planBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// Compile builds the Postgres plan for f. Rows are expected to expose
// the activity columns plus a weighted tsvector column named "search"
// (title=A, category=B, description=C, content=D), so ts_rank orders
// title matches above category, description, and content matches.
func Compile(f Filter, opts ...PlanOption) Plan {
	b := &planBuilder{defaultPageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(b)
	}

	var conditions []string
	for _, scope := range b.scopes {
		conditions = append(conditions, fmt.Sprintf("%s = %s", scope.column, b.arg(scope.value)))
	}

	if f.Difficulty != nil {
		conditions = append(conditions, b.numberConditions("difficulty", f.Difficulty.Filter())...)
	}
	if f.Duration != nil {
		conditions = append(conditions, b.numberConditions("duration", f.Duration.Filter())...)
	}

	if len(f.Categories) == 1 {
		conditions = append(conditions, fmt.Sprintf("lower(category) = lower(%s)", b.arg(f.Categories[0])))
	} else if len(f.Categories) > 1 {
		lowered := make([]string, len(f.Categories))
		for i, c := range f.Categories {
			lowered[i] = strings.ToLower(c)
		}
		conditions = append(conditions, fmt.Sprintf("lower(category) = ANY(%s)", b.arg(lowered)))
	}

	// Each search term is a required phrase match; terms AND together.
	var rankExpr string
	if terms := SearchTerms(f.SearchTerm); len(terms) > 0 {
		phrases := make([]string, len(terms))
		for i, term := range terms {
			phrases[i] = fmt.Sprintf("phraseto_tsquery('english', %s)", b.arg(term))
		}
		tsquery := "(" + strings.Join(phrases, " && ") + ")"
		conditions = append(conditions, "search @@ "+tsquery)
		rankExpr = "ts_rank(search, " + tsquery + ")"
	}

	orderBy := make([]string, 0, len(f.SortBy)+3)
	for _, sortBy := range f.SortBy {
		orderBy = append(orderBy, string(sortBy.Key)+direction(sortBy.Order))
	}
	if rankExpr != "" {
		// Relevance is the primary sort when the caller gave none,
		// otherwise the tiebreaker after the caller's keys.
		orderBy = append(orderBy, rankExpr+" DESC")
	} else if len(orderBy) == 0 {
		orderBy = append(orderBy, "title ASC")
	}
	// Deterministic output for identical sort keys.
	orderBy = append(orderBy, "created ASC", "id ASC")

	page, pageSize := f.Pagination(b.defaultPageSize)
	return Plan{
		Args:       b.args,
		conditions: conditions,
		orderBy:    orderBy,
		Page:       page,
		PageSize:   pageSize,
		Offset:     (page - 1) * pageSize,
		Limit:      pageSize,
	}
}

func (b *planBuilder) numberConditions(column string, f NumberFilter) []string {
	var conds []string
	if f.Eq != nil {
		conds = append(conds, fmt.Sprintf("%s = %s", column, b.arg(*f.Eq)))
	}
	if f.Gte != nil {
		conds = append(conds, fmt.Sprintf("%s >= %s", column, b.arg(*f.Gte)))
	}
	if f.Lte != nil {
		conds = append(conds, fmt.Sprintf("%s <= %s", column, b.arg(*f.Lte)))
	}
	return conds
}

func direction(o Order) string {
	if o == Desc {
		return " DESC"
	}
	return " ASC"
}

// WhereClause renders the predicate, including the leading " WHERE", or
// "" when the plan matches everything.
func (p Plan) WhereClause() string {
	if len(p.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(p.conditions, " AND ")
}

// OrderByClause renders the sort specification with its leading keyword.
func (p Plan) OrderByClause() string {
	return " ORDER BY " + strings.Join(p.orderBy, ", ")
}

// WindowClause renders the pagination window.
func (p Plan) WindowClause() string {
	return fmt.Sprintf(" OFFSET %d LIMIT %d", p.Offset, p.Limit)
}

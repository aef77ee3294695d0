package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNumberOrRangeExact(t *testing.T) {
	f := Exactly(5).Filter()
	require.NotNil(t, f.Eq)
	require.Equal(t, 5, *f.Eq)
	require.Nil(t, f.Gte)
	require.Nil(t, f.Lte)

	require.True(t, f.Matches(5))
	require.False(t, f.Matches(4))
	require.False(t, f.Matches(6))
}

func TestNumberOrRangeBetween(t *testing.T) {
	f := Between(1, 5).Filter()
	require.Nil(t, f.Eq)
	require.Equal(t, 1, *f.Gte)
	require.Equal(t, 5, *f.Lte)

	// Both bounds inclusive.
	require.True(t, f.Matches(1))
	require.True(t, f.Matches(3))
	require.True(t, f.Matches(5))
	require.False(t, f.Matches(0))
	require.False(t, f.Matches(6))
}

func TestNumberOrRangeMinOnly(t *testing.T) {
	f := AtLeast(5).Filter()
	require.Nil(t, f.Eq)
	require.Nil(t, f.Lte)
	require.True(t, f.Matches(5))
	require.True(t, f.Matches(100))
	require.False(t, f.Matches(4))
}

func TestNumberOrRangeMaxOnly(t *testing.T) {
	f := AtMost(5).Filter()
	require.Nil(t, f.Eq)
	require.Nil(t, f.Gte)
	require.True(t, f.Matches(5))
	require.True(t, f.Matches(0))
	require.False(t, f.Matches(6))
}

func TestParseOrder(t *testing.T) {
	for _, s := range []string{"asc", "ascending", "1"} {
		order, ok := ParseOrder(s)
		require.True(t, ok, s)
		require.Equal(t, Asc, order, s)
	}
	for _, s := range []string{"desc", "descending", "-1"} {
		order, ok := ParseOrder(s)
		require.True(t, ok, s)
		require.Equal(t, Desc, order, s)
	}
	_, ok := ParseOrder("sideways")
	require.False(t, ok)
}

func TestParseSortKey(t *testing.T) {
	for _, s := range []string{"created", "title", "category", "duration", "difficulty"} {
		key, ok := ParseSortKey(s)
		require.True(t, ok, s)
		require.Equal(t, SortKey(s), key)
	}
	_, ok := ParseSortKey("id")
	require.False(t, ok)
}

func TestPaginationDefaults(t *testing.T) {
	page, pageSize := Filter{}.Pagination(DefaultPageSize)
	require.Equal(t, 1, page)
	require.Equal(t, 20, pageSize)

	page, pageSize = Filter{}.Pagination(DefaultCategoryPageSize)
	require.Equal(t, 1, page)
	require.Equal(t, 10, pageSize)
}

func TestPaginationFloorsNonPositiveValues(t *testing.T) {
	page, pageSize := Filter{Page: -3, PageSize: -10}.Pagination(DefaultPageSize)
	require.Equal(t, 1, page)
	require.Equal(t, 1, pageSize)
}

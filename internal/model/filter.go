package model

import "strings"

// AllCategories is the category filter value that disables category filtering.
const AllCategories = "all"

// ItemFilter restricts an item listing. Zero value matches everything.
type ItemFilter struct {
	CategoryID string
	Query      string
}

// Match reports whether item passes both the category and the search filter.
func (f ItemFilter) Match(item Item) bool {
	if f.CategoryID != "" && f.CategoryID != AllCategories && item.CategoryID != f.CategoryID {
		return false
	}

	// The query is matched as typed: surrounding spaces are part of it.
	if f.Query == "" {
		return true
	}
	q := strings.ToLower(f.Query)
	return strings.Contains(strings.ToLower(item.Name), q) ||
		strings.Contains(strings.ToLower(item.Description), q) ||
		strings.Contains(strings.ToLower(item.Location), q)
}

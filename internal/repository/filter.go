package repository

import (
	"strings"

	"github.com/dukerupert/shoplist/internal/model"
)

type FilterMode string

const (
	FilterAll      FilterMode = "all"
	FilterSearch   FilterMode = "search"
	FilterPriority FilterMode = "priority"
	FilterCategory FilterMode = "category"
)

// Filter selects a view of the active items. Only one criterion applies:
// search text beats priority, priority beats category, and with none set
// every active item is returned. Criteria are never combined.
type Filter struct {
	Search   string
	Priority *model.Priority
	Category *string
}

// Mode reports which criterion the filter dispatches on.
func (f Filter) Mode() FilterMode {
	switch {
	case strings.TrimSpace(f.Search) != "":
		return FilterSearch
	case f.Priority != nil:
		return FilterPriority
	case f.Category != nil && *f.Category != "":
		return FilterCategory
	default:
		return FilterAll
	}
}

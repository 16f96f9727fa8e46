package model

import (
	"strings"
	"time"
)

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Priorities lists every priority in display order.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// ParsePriority decodes a stored or user-supplied priority. Matching is
// case-insensitive; anything unrecognized decodes as PriorityMedium so rows
// written by other versions still load.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToUpper(strings.TrimSpace(s))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Rank orders priorities for display: higher ranks sort first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 1
	default:
		return 2
	}
}

func (p Priority) String() string {
	return string(p)
}

type ShoppingItem struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Priority    Priority `json:"priority"`
	Quantity    int      `json:"quantity"`
	Checked     bool     `json:"is_checked"`
	Archived    bool     `json:"is_archived"`
	CreatedAt   int64    `json:"created_at"`
}

// NewShoppingItem returns an unsaved item with default fields and the
// creation time stamped in epoch milliseconds.
func NewShoppingItem(name string) ShoppingItem {
	return ShoppingItem{
		Name:      name,
		Priority:  PriorityMedium,
		Quantity:  1,
		CreatedAt: time.Now().UnixMilli(),
	}
}

// Less reports whether a sorts before b in list order: priority rank
// descending, then name ascending.
func Less(a, b ShoppingItem) bool {
	if a.Priority.Rank() != b.Priority.Rank() {
		return a.Priority.Rank() > b.Priority.Rank()
	}
	return a.Name < b.Name
}

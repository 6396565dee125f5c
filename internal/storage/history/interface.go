// Package history records what users searched for on the web surface.
package history

import (
	"context"
	"time"
)

// Entry is one recorded search.
type Entry struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	Symbol     string    `json:"symbol,omitempty"`
	SearchedAt time.Time `json:"searched_at"`
}

// Store defines the interface for search history persistence.
type Store interface {
	// Save persists an entry and assigns an ID.
	Save(ctx context.Context, e Entry) (Entry, error)

	// List retrieves entries matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]Entry, error)

	// Count returns the number of entries matching the filter.
	Count(ctx context.Context, filter ListFilter) (int, error)
}

// ListFilter defines criteria for listing entries.
type ListFilter struct {
	Query  string
	Symbol string
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

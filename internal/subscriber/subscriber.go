// Package subscriber stores the recipients of campaigns and rule emails.
package subscriber

import (
	"context"
	"time"
)

// Status of a subscriber
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ParseStatus maps s to a Status. Anything other than "inactive" is active.
func ParseStatus(s string) Status {
	if Status(s) == StatusInactive {
		return StatusInactive
	}
	return StatusActive
}

// Subscriber is a single mailing list entry
type Subscriber struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListFilter contains filters for listing subscribers
type ListFilter struct {
	Status Status
	Search string
	Limit  int
	Offset int
}

// ImportResult summarizes a CSV import
type ImportResult struct {
	Total    int      `json:"total"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Directory resolves the recipients of a send
type Directory interface {
	// Active returns every subscriber whose status is not inactive
	Active(ctx context.Context) ([]*Subscriber, error)
}

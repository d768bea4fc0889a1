// Package campaign sends one-off and scheduled emails to the subscriber list.
package campaign

import (
	"errors"
	"strings"
	"time"

	"github.com/foxzi/postcard/internal/template"
)

// Status of a campaign
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
)

var (
	ErrEmptySubject   = errors.New("subject is required")
	ErrNoRecipients   = errors.New("no active recipients")
	ErrNoScheduleDate = errors.New("schedule date is required")
	ErrScheduleInPast = errors.New("schedule date is in the past")
	ErrNotFound       = errors.New("campaign not found")
	ErrStatusChanged  = errors.New("campaign status changed")
)

// Draft is the composer's content before it becomes a campaign
type Draft struct {
	Subject string           `json:"subject"`
	Variant template.Variant `json:"variant"`
	Input   template.Input   `json:"input"`
}

// normalize folds the subject into the input and checks it is present
func (d Draft) normalize() (Draft, error) {
	subject := strings.TrimSpace(d.Subject)
	if subject == "" {
		subject = strings.TrimSpace(d.Input.Subject)
	}
	if subject == "" {
		return d, ErrEmptySubject
	}
	d.Subject = subject
	d.Input.Subject = subject
	d.Variant = template.ParseVariant(string(d.Variant))
	return d, nil
}

// Campaign is a draft that was sent or scheduled
type Campaign struct {
	ID             string           `json:"id"`
	Subject        string           `json:"subject"`
	Variant        template.Variant `json:"variant"`
	Input          template.Input   `json:"input"`
	Status         Status           `json:"status"`
	ScheduledAt    *time.Time       `json:"scheduled_at,omitempty"`
	SentAt         *time.Time       `json:"sent_at,omitempty"`
	RecipientCount int              `json:"recipient_count"`
	SentCount      int              `json:"sent_count"`
	FailedCount    int              `json:"failed_count"`
	LastError      string           `json:"last_error,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// ListFilter contains filters for listing campaigns
type ListFilter struct {
	Status Status
	Limit  int
}

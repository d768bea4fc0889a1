// Package rule manages automated emails triggered by commerce events.
package rule

import (
	"time"

	"github.com/foxzi/postcard/internal/template"
)

// Kind identifies the commerce event a rule reacts to
type Kind string

const (
	KindConfirmation  Kind = "confirmation"
	KindAbandonedCart Kind = "abandoned-cart"
	KindCancellation  Kind = "cancellation"
	KindRefund        Kind = "refund"
)

// Kinds returns all rule kinds
func Kinds() []Kind {
	return []Kind{KindConfirmation, KindAbandonedCart, KindCancellation, KindRefund}
}

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	switch k {
	case KindConfirmation, KindAbandonedCart, KindCancellation, KindRefund:
		return true
	}
	return false
}

// Rule is an automated email sent when an event of Kind occurs
type Rule struct {
	ID        string           `json:"id"`
	Kind      Kind             `json:"kind"`
	Name      string           `json:"name"`
	Variant   template.Variant `json:"variant"`
	Input     template.Input   `json:"input"`
	Active    bool             `json:"active"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Subject returns the rule's email subject
func (r *Rule) Subject() string {
	return r.Input.Subject
}

// ListFilter contains filters for listing rules
type ListFilter struct {
	Kind       Kind
	ActiveOnly bool
}

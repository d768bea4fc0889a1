// Package compose personalizes a template for one recipient and builds the
// gateway message for it.
package compose

import (
	"maps"
	"time"

	"github.com/foxzi/postcard/internal/email"
	"github.com/foxzi/postcard/internal/gateway"
	"github.com/foxzi/postcard/internal/metrics"
	"github.com/foxzi/postcard/internal/template"
)

// Sender identifies the store the email comes from
type Sender struct {
	Company string
	From    string
	ReplyTo string
}

// Recipient is the person an email is personalized for
type Recipient struct {
	Email string
	Name  string
}

// Content is a design plus the placeholder values for one send
type Content struct {
	Input   template.Input
	Variant template.Variant
	Values  map[template.Token]string
	Tag     string
}

// Context returns the render context for r. The company placeholder defaults
// to the sender's company and the customer placeholder to the recipient name.
func (s Sender) Context(r Recipient, values map[template.Token]string, now time.Time) template.RenderContext {
	merged := make(map[template.Token]string, len(values)+2)
	if s.Company != "" {
		merged[template.TokenCompanyName] = s.Company
	}
	if r.Name != "" {
		merged[template.TokenCustomerName] = r.Name
	}
	maps.Copy(merged, values)

	return template.RenderContext{
		Year:         now.Year(),
		Values:       merged,
		GreetingName: email.FirstName(r.Name, r.Email),
		Company:      s.Company,
		Recipient:    r.Email,
	}
}

// Message renders c for r and wraps it in a gateway message
func (s Sender) Message(c Content, r Recipient, now time.Time) *gateway.Message {
	rc := s.Context(r, c.Values, now)
	variant := template.ParseVariant(string(c.Variant))
	metrics.IncRenders(string(variant))

	return &gateway.Message{
		From:    email.Format(s.Company, s.From),
		To:      email.Format(r.Name, r.Email),
		ReplyTo: s.ReplyTo,
		Subject: template.Substitute(c.Input.Subject, rc.Values),
		HTML:    template.RenderWith(c.Input, variant, rc),
		Text:    template.RenderText(c.Input, rc),
		Tag:     c.Tag,
	}
}

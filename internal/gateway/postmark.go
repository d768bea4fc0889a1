package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/mrz1836/postmark"
)

// ErrMissingToken is returned when the Postmark server token is empty
var ErrMissingToken = errors.New("postmark server token is required")

// postmarkAPI is the subset of *postmark.Client used by the gateway
type postmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// Postmark sends messages through the Postmark transactional API
type Postmark struct {
	api        postmarkAPI
	trackOpens bool
}

// NewPostmark creates a Postmark gateway
func NewPostmark(serverToken, accountToken string, trackOpens bool) (*Postmark, error) {
	if serverToken == "" {
		return nil, ErrMissingToken
	}
	return &Postmark{
		api:        postmark.NewClient(serverToken, accountToken),
		trackOpens: trackOpens,
	}, nil
}

// Name returns the gateway name
func (p *Postmark) Name() string { return "postmark" }

// Send delivers msg. Postmark error codes 300-499 reject the message itself
// and are permanent; transport errors are temporary.
func (p *Postmark) Send(ctx context.Context, msg *Message) error {
	pm := postmark.Email{
		From:       msg.From,
		To:         msg.To,
		ReplyTo:    msg.ReplyTo,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTMLBody:   msg.HTML,
		TextBody:   msg.Text,
		TrackOpens: p.trackOpens,
		Headers:    postmarkHeaders(msg),
	}
	if p.trackOpens {
		pm.TrackLinks = "HtmlOnly"
	}

	resp, err := p.api.SendEmail(ctx, pm)
	if err != nil {
		return &DeliveryError{Temporary: true, Message: "postmark request failed", Err: err}
	}
	if resp.ErrorCode > 0 {
		return &DeliveryError{
			Temporary: resp.ErrorCode < 300 || resp.ErrorCode >= 500,
			Message:   fmt.Sprintf("postmark error %d: %s", resp.ErrorCode, resp.Message),
		}
	}

	if resp.MessageID != "" {
		msg.ID = resp.MessageID
	}
	return nil
}

func postmarkHeaders(msg *Message) []postmark.Header {
	if len(msg.Headers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(msg.Headers))
	for k := range msg.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]postmark.Header, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, postmark.Header{Name: k, Value: msg.Headers[k]})
	}
	return headers
}

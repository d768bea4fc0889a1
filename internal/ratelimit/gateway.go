package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/foxzi/postcard/internal/email"
	"github.com/foxzi/postcard/internal/gateway"
)

// Gateway holds messages to the quotas of a Limiter before handing them on
type Gateway struct {
	next    gateway.Gateway
	limiter *Limiter
}

// Wrap returns gw limited by l
func Wrap(gw gateway.Gateway, l *Limiter) *Gateway {
	return &Gateway{next: gw, limiter: l}
}

// Send delivers msg if every quota has room. An exhausted quota is reported
// as a temporary delivery error so callers count it as a failed message.
func (g *Gateway) Send(ctx context.Context, msg *gateway.Message) error {
	res := g.limiter.Allow(ctx, Request{
		RecipientDomain: email.Domain(msg.To, ""),
		Tag:             msg.Tag,
	})
	if !res.Allowed {
		return &gateway.DeliveryError{
			Temporary: true,
			Message:   fmt.Sprintf("%s quota exceeded for %s, retry after %s", res.DeniedBy, res.DeniedKey, res.RetryAfter.Round(time.Second)),
		}
	}
	return g.next.Send(ctx, msg)
}

// Name returns the name of the wrapped gateway
func (g *Gateway) Name() string {
	return g.next.Name()
}

// Unwrap returns the wrapped gateway
func (g *Gateway) Unwrap() gateway.Gateway {
	return g.next
}

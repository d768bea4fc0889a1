package stripe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxzi/postcard/internal/compose"
	"github.com/foxzi/postcard/internal/credits"
	"github.com/foxzi/postcard/internal/gateway"
	"github.com/foxzi/postcard/internal/metrics"
	"github.com/foxzi/postcard/internal/rule"
	"github.com/foxzi/postcard/internal/template"
)

// Rules returns the active automation rules of a kind
type Rules interface {
	ActiveByKind(ctx context.Context, kind rule.Kind) ([]*rule.Rule, error)
}

// Credits reserves and returns email credits
type Credits interface {
	Consume(ctx context.Context, n int64) (credits.Balance, error)
	Refund(ctx context.Context, n int64) (credits.Balance, error)
}

// Outcome of handling one event
type Outcome string

const (
	OutcomeSent      Outcome = "sent"
	OutcomePartial   Outcome = "partial"
	OutcomeFailed    Outcome = "failed"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
)

// Result summarizes a handled event
type Result struct {
	EventID string    `json:"event_id"`
	Type    string    `json:"type"`
	Kind    rule.Kind `json:"kind,omitempty"`
	Outcome Outcome   `json:"outcome"`
	Reason  string    `json:"reason,omitempty"`
	Sent    int       `json:"sent"`
	Failed  int       `json:"failed"`
	Errors  []string  `json:"errors,omitempty"`
}

// Dispatcher sends the automated emails an event triggers
type Dispatcher struct {
	rules   Rules
	credits Credits
	gateway gateway.Gateway
	events  *EventLog
	sender  compose.Sender
	logger  *slog.Logger
	now     func() time.Time
}

// NewDispatcher creates a dispatcher. events may be nil to disable dedupe.
func NewDispatcher(rules Rules, ledger Credits, gw gateway.Gateway, events *EventLog, sender compose.Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		rules:   rules,
		credits: ledger,
		gateway: gw,
		events:  events,
		sender:  sender,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle renders every active rule for ev and sends it to the customer.
// An error means nothing was attempted and the event may be redelivered.
func (d *Dispatcher) Handle(ctx context.Context, ev *Event) (*Result, error) {
	res := &Result{EventID: ev.ID, Type: ev.Type}

	kind, ok := KindFor(ev.Type)
	if !ok {
		return d.finish(res, OutcomeIgnored, "unhandled event type"), nil
	}
	res.Kind = kind

	details, err := ev.Details()
	if err != nil {
		return nil, err
	}
	if details.Email == "" {
		return d.finish(res, OutcomeIgnored, "event has no customer email"), nil
	}

	rules, err := d.rules.ActiveByKind(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	if len(rules) == 0 {
		return d.finish(res, OutcomeIgnored, "no active rules"), nil
	}

	if d.events != nil {
		first, err := d.events.Claim(ctx, ev)
		if err != nil {
			return nil, fmt.Errorf("failed to record event: %w", err)
		}
		if !first {
			return d.finish(res, OutcomeDuplicate, "event already processed"), nil
		}
	}

	to := compose.Recipient{Email: details.Email, Name: details.Name}
	values := details.Values(d.sender.Company)

	for _, r := range rules {
		if err := d.send(ctx, r, to, values); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", r.Name, err))
			d.logger.Warn("automated email failed",
				"event_id", ev.ID,
				"rule", r.Name,
				"error", err,
			)
			continue
		}
		res.Sent++
	}

	if d.events != nil {
		if err := d.events.Complete(ctx, ev.ID, res.Sent, res.Failed); err != nil {
			d.logger.Error("failed to complete event record", "event_id", ev.ID, "error", err)
		}
	}

	switch {
	case res.Failed == 0:
		res.Outcome = OutcomeSent
	case res.Sent == 0:
		res.Outcome = OutcomeFailed
	default:
		res.Outcome = OutcomePartial
	}
	return d.finish(res, res.Outcome, ""), nil
}

// send delivers one rule's email, holding a credit only while it succeeds
func (d *Dispatcher) send(ctx context.Context, r *rule.Rule, to compose.Recipient, values map[template.Token]string) error {
	if _, err := d.credits.Consume(ctx, 1); err != nil {
		metrics.IncMessagesFailed(d.gateway.Name(), "webhook", errorType(err))
		return err
	}

	msg := d.sender.Message(compose.Content{
		Input:   r.Input,
		Variant: r.Variant,
		Values:  values,
		Tag:     string(r.Kind),
	}, to, d.now())

	if err := d.gateway.Send(ctx, msg); err != nil {
		if _, rerr := d.credits.Refund(ctx, 1); rerr != nil {
			d.logger.Error("failed to refund credit", "error", rerr)
		}
		metrics.IncMessagesFailed(d.gateway.Name(), "webhook", errorType(err))
		return err
	}

	metrics.IncMessagesSent(d.gateway.Name(), "webhook")
	return nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, credits.ErrInsufficient):
		return "insufficient_credits"
	case gateway.IsTemporary(err):
		return "temporary"
	default:
		return "permanent"
	}
}

func (d *Dispatcher) finish(res *Result, outcome Outcome, reason string) *Result {
	res.Outcome = outcome
	if reason != "" {
		res.Reason = reason
	}
	metrics.IncWebhookEvents(res.Type, string(outcome))
	d.logger.Info("stripe event handled",
		"event_id", res.EventID,
		"type", res.Type,
		"outcome", outcome,
		"sent", res.Sent,
		"failed", res.Failed,
	)
	return res
}

package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/foxzi/postcard/internal/compose"
	"github.com/foxzi/postcard/internal/credits"
	"github.com/foxzi/postcard/internal/gateway"
	"github.com/foxzi/postcard/internal/metrics"
	"github.com/foxzi/postcard/internal/subscriber"
	"github.com/foxzi/postcard/internal/template"
)

// DefaultConcurrency is the number of messages handed to the gateway at once
const DefaultConcurrency = 5

// Credits reserves and returns email credits
type Credits interface {
	Consume(ctx context.Context, n int64) (credits.Balance, error)
	Refund(ctx context.Context, n int64) (credits.Balance, error)
}

// Composer validates drafts and delivers campaigns
type Composer struct {
	store       *Storage
	recipients  subscriber.Directory
	credits     Credits
	gateway     gateway.Gateway
	sender      compose.Sender
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// NewComposer creates a composer. A concurrency below one uses DefaultConcurrency.
func NewComposer(store *Storage, recipients subscriber.Directory, ledger Credits, gw gateway.Gateway, sender compose.Sender, concurrency int, logger *slog.Logger) *Composer {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Composer{
		store:       store,
		recipients:  recipients,
		credits:     ledger,
		gateway:     gw,
		sender:      sender,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// Preview renders the draft with sample personalization. The subject is not
// required for a preview.
func (c *Composer) Preview(d Draft, now time.Time) string {
	if s := strings.TrimSpace(d.Subject); s != "" {
		d.Input.Subject = s
	}
	return template.Render(d.Input, template.ParseVariant(string(d.Variant)), now)
}

// SendNow delivers the draft to every active subscriber. Credits for all
// recipients are reserved up front; failed messages return theirs.
func (c *Composer) SendNow(ctx context.Context, d Draft) (*Campaign, error) {
	d, err := d.normalize()
	if err != nil {
		return nil, err
	}

	recipients, err := c.activeRecipients(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := c.credits.Consume(ctx, int64(len(recipients))); err != nil {
		return nil, err
	}

	camp := &Campaign{
		Subject:        d.Subject,
		Variant:        d.Variant,
		Input:          d.Input,
		Status:         StatusSending,
		RecipientCount: len(recipients),
	}
	if err := c.store.Create(ctx, camp); err != nil {
		c.refund(ctx, len(recipients))
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	c.deliver(ctx, camp, recipients)
	return camp, c.store.Update(ctx, camp)
}

// Schedule stores the draft for delivery at the given time
func (c *Composer) Schedule(ctx context.Context, d Draft, at time.Time) (*Campaign, error) {
	d, err := d.normalize()
	if err != nil {
		return nil, err
	}
	if at.IsZero() {
		return nil, ErrNoScheduleDate
	}
	if at.Before(c.now()) {
		return nil, ErrScheduleInPast
	}

	at = at.UTC()
	camp := &Campaign{
		Subject:     d.Subject,
		Variant:     d.Variant,
		Input:       d.Input,
		Status:      StatusScheduled,
		ScheduledAt: &at,
	}
	if err := c.store.Create(ctx, camp); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	c.logger.Info("campaign scheduled", "campaign_id", camp.ID, "scheduled_at", at)
	return camp, nil
}

// Cancel returns a scheduled campaign to draft
func (c *Composer) Cancel(ctx context.Context, id string) (*Campaign, error) {
	camp, err := c.store.Transition(ctx, id, StatusScheduled, StatusDraft)
	if err != nil {
		return nil, err
	}
	camp.ScheduledAt = nil
	return camp, c.store.Update(ctx, camp)
}

// Deliver sends a scheduled campaign. Another caller delivering the same
// campaign concurrently gets ErrStatusChanged.
func (c *Composer) Deliver(ctx context.Context, id string) (*Campaign, error) {
	camp, err := c.store.Transition(ctx, id, StatusScheduled, StatusSending)
	if err != nil {
		return nil, err
	}

	recipients, err := c.activeRecipients(ctx)
	if err == nil {
		_, err = c.credits.Consume(ctx, int64(len(recipients)))
	}
	if err != nil {
		camp.Status = StatusFailed
		camp.LastError = err.Error()
		metrics.IncCampaigns(string(StatusFailed))
		c.logger.Warn("scheduled campaign not sent", "campaign_id", camp.ID, "error", err)
		return camp, c.store.Update(ctx, camp)
	}

	camp.RecipientCount = len(recipients)
	c.deliver(ctx, camp, recipients)
	return camp, c.store.Update(ctx, camp)
}

func (c *Composer) activeRecipients(ctx context.Context) ([]*subscriber.Subscriber, error) {
	recipients, err := c.recipients.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	return recipients, nil
}

// deliver renders and sends one message per recipient and records the
// counts on camp. Credits must already be reserved for every recipient.
func (c *Composer) deliver(ctx context.Context, camp *Campaign, recipients []*subscriber.Subscriber) {
	content := compose.Content{
		Input:   camp.Input,
		Variant: camp.Variant,
		Tag:     "campaign",
	}
	headers := c.listHeaders()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		lastErr error
	)
	sem := make(chan struct{}, c.concurrency)

	for _, sub := range recipients {
		if ctx.Err() != nil {
			mu.Lock()
			camp.FailedCount++
			lastErr = ctx.Err()
			mu.Unlock()
			continue
		}

		sem <- struct{}{}
		wg.Add(1)

		go func(sub *subscriber.Subscriber) {
			defer func() {
				<-sem
				wg.Done()
			}()

			msg := c.sender.Message(content, compose.Recipient{Email: sub.Email, Name: sub.Name}, c.now())
			msg.Headers = headers
			err := c.gateway.Send(ctx, msg)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				camp.FailedCount++
				lastErr = err
				metrics.IncMessagesFailed(c.gateway.Name(), "campaign", failureType(err))
				c.logger.Warn("campaign message failed",
					"campaign_id", camp.ID,
					"to", sub.Email,
					"error", err,
				)
				return
			}
			camp.SentCount++
			metrics.IncMessagesSent(c.gateway.Name(), "campaign")
		}(sub)
	}

	wg.Wait()

	if camp.FailedCount > 0 {
		c.refund(ctx, camp.FailedCount)
	}
	if lastErr != nil {
		camp.LastError = lastErr.Error()
	}

	now := c.now().UTC()
	camp.SentAt = &now
	if camp.SentCount > 0 {
		camp.Status = StatusSent
	} else {
		camp.Status = StatusFailed
	}
	metrics.IncCampaigns(string(camp.Status))

	c.logger.Info("campaign delivered",
		"campaign_id", camp.ID,
		"recipients", camp.RecipientCount,
		"sent", camp.SentCount,
		"failed", camp.FailedCount,
	)
}

// listHeaders returns the List-Unsubscribe header for bulk mail
func (c *Composer) listHeaders() map[string]string {
	addr := c.sender.ReplyTo
	if addr == "" {
		addr = c.sender.From
	}
	if addr == "" {
		return nil
	}
	return map[string]string{
		"List-Unsubscribe": fmt.Sprintf("<mailto:%s?subject=unsubscribe>", addr),
	}
}

func (c *Composer) refund(ctx context.Context, n int) {
	// A cancelled ctx must not keep credits reserved
	if _, err := c.credits.Refund(context.WithoutCancel(ctx), int64(n)); err != nil {
		c.logger.Error("failed to refund credits", "credits", n, "error", err)
	}
}

func failureType(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case gateway.IsTemporary(err):
		return "temporary"
	default:
		return "permanent"
	}
}

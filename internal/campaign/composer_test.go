package campaign

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/foxzi/postcard/internal/compose"
	"github.com/foxzi/postcard/internal/credits"
	"github.com/foxzi/postcard/internal/gateway"
	"github.com/foxzi/postcard/internal/subscriber"
	"github.com/foxzi/postcard/internal/template"
)

var testNow = time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeGateway struct {
	mu     sync.Mutex
	sent   []*gateway.Message
	reject map[string]bool
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) Send(ctx context.Context, msg *gateway.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for addr := range g.reject {
		if strings.Contains(msg.To, addr) {
			return &gateway.DeliveryError{Message: "mailbox unavailable"}
		}
	}
	g.sent = append(g.sent, msg)
	return nil
}

type composerFixture struct {
	storage     *Storage
	subscribers *subscriber.Storage
	ledger      *credits.Ledger
	gw          *fakeGateway
	composer    *Composer
}

func newComposerFixture(t *testing.T, initialCredits int64, emails ...string) *composerFixture {
	t.Helper()
	db := newTestDB(t)
	ctx := context.Background()

	storage, err := NewStorage(db)
	if err != nil {
		t.Fatalf("NewStorage() error = %v", err)
	}
	subs, err := subscriber.NewStorage(db)
	if err != nil {
		t.Fatalf("subscriber.NewStorage() error = %v", err)
	}
	for _, addr := range emails {
		if err := subs.Add(ctx, &subscriber.Subscriber{Email: addr, Name: "Pat Doe"}); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	ledger, err := credits.NewLedger(db, initialCredits)
	if err != nil {
		t.Fatalf("NewLedger() error = %v", err)
	}

	gw := &fakeGateway{reject: map[string]bool{}}
	sender := compose.Sender{Company: "ACME Store", From: "news@acme.test"}
	composer := NewComposer(storage, subs, ledger, gw, sender, 2, slog.New(slog.NewTextHandler(io.Discard, nil)))
	composer.now = func() time.Time { return testNow }

	return &composerFixture{storage: storage, subscribers: subs, ledger: ledger, gw: gw, composer: composer}
}

func testDraft(subject string) Draft {
	return Draft{
		Subject: subject,
		Variant: template.VariantMinimal,
		Input: template.Input{
			HeroTitle:    "SPRING SALE",
			BodyText:     "Hi {customer_name}, everything at {company_name} is 20% off.",
			PrimaryColor: "#4f46e5",
		},
	}
}

func TestComposer_SendNow(t *testing.T) {
	f := newComposerFixture(t, 10, "a@example.com", "b@example.com", "c@example.com")
	ctx := context.Background()

	camp, err := f.composer.SendNow(ctx, testDraft("  Spring sale  "))
	if err != nil {
		t.Fatalf("SendNow() error = %v", err)
	}

	if camp.Status != StatusSent || camp.SentCount != 3 || camp.RecipientCount != 3 {
		t.Errorf("SendNow() = %+v, want 3 sent", camp)
	}
	if camp.Subject != "Spring sale" || camp.SentAt == nil {
		t.Errorf("SendNow() subject = %q, sent_at = %v", camp.Subject, camp.SentAt)
	}

	msg := f.gw.sent[0]
	if msg.Subject != "Spring sale" {
		t.Errorf("message subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "Hi Pat Doe, everything at ACME Store") {
		t.Errorf("message HTML not personalized:\n%s", msg.HTML)
	}
	if msg.Headers["List-Unsubscribe"] != "<mailto:news@acme.test?subject=unsubscribe>" {
		t.Errorf("List-Unsubscribe = %q", msg.Headers["List-Unsubscribe"])
	}

	bal, _ := f.ledger.Balance(ctx)
	if bal.Used != 3 {
		t.Errorf("credits used = %d, want 3", bal.Used)
	}

	stored, _ := f.storage.Get(ctx, camp.ID)
	if stored == nil || stored.Status != StatusSent {
		t.Errorf("stored campaign = %+v", stored)
	}
}

func TestComposer_SendNowPartialFailure(t *testing.T) {
	f := newComposerFixture(t, 10, "a@example.com", "bounce@example.com")
	f.gw.reject["bounce@example.com"] = true
	ctx := context.Background()

	camp, err := f.composer.SendNow(ctx, testDraft("Hello"))
	if err != nil {
		t.Fatalf("SendNow() error = %v", err)
	}
	if camp.Status != StatusSent || camp.SentCount != 1 || camp.FailedCount != 1 {
		t.Errorf("SendNow() = %+v, want 1 sent 1 failed", camp)
	}
	if camp.LastError == "" {
		t.Error("SendNow() did not record the failure")
	}

	bal, _ := f.ledger.Balance(ctx)
	if bal.Used != 1 {
		t.Errorf("credits used = %d, want failed credit returned", bal.Used)
	}
}

func TestComposer_SendNowErrors(t *testing.T) {
	tests := []struct {
		name    string
		credits int64
		emails  []string
		subject string
		wantErr error
	}{
		{"empty subject", 10, []string{"a@example.com"}, "", ErrEmptySubject},
		{"blank subject", 10, []string{"a@example.com"}, "   ", ErrEmptySubject},
		{"no recipients", 10, nil, "Hello", ErrNoRecipients},
		{"insufficient credits", 1, []string{"a@example.com", "b@example.com"}, "Hello", credits.ErrInsufficient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newComposerFixture(t, tt.credits, tt.emails...)
			_, err := f.composer.SendNow(context.Background(), testDraft(tt.subject))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SendNow() error = %v, want %v", err, tt.wantErr)
			}
			if len(f.gw.sent) != 0 {
				t.Errorf("sent %d messages on error", len(f.gw.sent))
			}
			list, _ := f.storage.List(context.Background(), ListFilter{})
			if len(list) != 0 {
				t.Errorf("stored %d campaigns on error", len(list))
			}
		})
	}
}

func TestComposer_SendNowSkipsInactive(t *testing.T) {
	f := newComposerFixture(t, 10, "a@example.com", "b@example.com")
	ctx := context.Background()

	sub, _ := f.subscribers.GetByEmail(ctx, "b@example.com")
	if _, err := f.subscribers.SetStatus(ctx, sub.ID, subscriber.StatusInactive); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	camp, err := f.composer.SendNow(ctx, testDraft("Hello"))
	if err != nil {
		t.Fatalf("SendNow() error = %v", err)
	}
	if camp.RecipientCount != 1 || len(f.gw.sent) != 1 {
		t.Errorf("recipients = %d, sent = %d; want 1", camp.RecipientCount, len(f.gw.sent))
	}
}

func TestComposer_Schedule(t *testing.T) {
	f := newComposerFixture(t, 10, "a@example.com")
	ctx := context.Background()

	tests := []struct {
		name    string
		subject string
		at      time.Time
		wantErr error
	}{
		{"valid", "Hello", testNow.Add(time.Hour), nil},
		{"empty subject", "", testNow.Add(time.Hour), ErrEmptySubject},
		{"no date", "Hello", time.Time{}, ErrNoScheduleDate},
		{"past", "Hello", testNow.Add(-time.Second), ErrScheduleInPast},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			camp, err := f.composer.Schedule(ctx, testDraft(tt.subject), tt.at)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Schedule() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if camp.Status != StatusScheduled || camp.ScheduledAt == nil || !camp.ScheduledAt.Equal(tt.at) {
				t.Errorf("Schedule() = %+v", camp)
			}
		})
	}

	if len(f.gw.sent) != 0 {
		t.Error("Schedule() sent messages")
	}
}

func TestComposer_DeliverAndCancel(t *testing.T) {
	f := newComposerFixture(t, 10, "a@example.com")
	ctx := context.Background()

	camp, err := f.composer.Schedule(ctx, testDraft("Later"), testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	delivered, err := f.composer.Deliver(ctx, camp.ID)
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if delivered.Status != StatusSent || delivered.SentCount != 1 {
		t.Errorf("Deliver() = %+v", delivered)
	}
	if _, err := f.composer.Deliver(ctx, camp.ID); !errors.Is(err, ErrStatusChanged) {
		t.Errorf("second Deliver() error = %v, want ErrStatusChanged", err)
	}

	other, _ := f.composer.Schedule(ctx, testDraft("Never"), testNow.Add(time.Hour))
	cancelled, err := f.composer.Cancel(ctx, other.ID)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if cancelled.Status != StatusDraft || cancelled.ScheduledAt != nil {
		t.Errorf("Cancel() = %+v, want draft without schedule", cancelled)
	}
}

func TestComposer_DeliverWithoutCredits(t *testing.T) {
	f := newComposerFixture(t, 0, "a@example.com")
	ctx := context.Background()

	camp, err := f.composer.Schedule(ctx, testDraft("Later"), testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	got, err := f.composer.Deliver(ctx, camp.ID)
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if got.Status != StatusFailed || !strings.Contains(got.LastError, "insufficient") {
		t.Errorf("Deliver() = %+v, want failed for credits", got)
	}
}

func TestComposer_Preview(t *testing.T) {
	f := newComposerFixture(t, 10)

	d := testDraft("")
	html := f.composer.Preview(d, testNow)
	if html != template.Render(d.Input, template.VariantMinimal, testNow) {
		t.Error("Preview() differs from the renderer output")
	}
	if !strings.Contains(html, "SPRING SALE") || !strings.Contains(html, "2030") {
		t.Errorf("Preview() missing content:\n%s", html)
	}
}

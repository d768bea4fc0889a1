package stripe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/postcard/internal/compose"
	"github.com/foxzi/postcard/internal/credits"
	"github.com/foxzi/postcard/internal/gateway"
	"github.com/foxzi/postcard/internal/rule"
)

type recordingGateway struct {
	mu   sync.Mutex
	sent []*gateway.Message
	fail error
}

func (g *recordingGateway) Name() string { return "test" }

func (g *recordingGateway) Send(ctx context.Context, msg *gateway.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return g.fail
	}
	g.sent = append(g.sent, msg)
	return nil
}

type fixture struct {
	rules      *rule.Storage
	ledger     *credits.Ledger
	events     *EventLog
	gw         *recordingGateway
	dispatcher *Dispatcher
}

func newFixture(t *testing.T, initialCredits int64) *fixture {
	t.Helper()

	db, err := bolt.Open(filepath.Join(t.TempDir(), "stripe.db"), 0600, nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	rules, err := rule.NewStorage(db)
	if err != nil {
		t.Fatalf("rule.NewStorage() error = %v", err)
	}
	ledger, err := credits.NewLedger(db, initialCredits)
	if err != nil {
		t.Fatalf("credits.NewLedger() error = %v", err)
	}
	events, err := NewEventLog(db)
	if err != nil {
		t.Fatalf("NewEventLog() error = %v", err)
	}

	gw := &recordingGateway{}
	sender := compose.Sender{Company: "ACME Store", From: "shop@acme.test"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &fixture{
		rules:      rules,
		ledger:     ledger,
		events:     events,
		gw:         gw,
		dispatcher: NewDispatcher(rules, ledger, gw, events, sender, logger),
	}
}

func (f *fixture) addRule(t *testing.T, kind rule.Kind, active bool) *rule.Rule {
	t.Helper()
	r := &rule.Rule{Kind: kind, Active: active}
	if err := f.rules.Create(context.Background(), r); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return r
}

func mustParse(t *testing.T, payload string) *Event {
	t.Helper()
	ev, err := ParseEvent([]byte(payload))
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	return ev
}

func TestDispatcher_SendsActiveRules(t *testing.T) {
	f := newFixture(t, 10)
	f.addRule(t, rule.KindConfirmation, true)
	f.addRule(t, rule.KindConfirmation, false)
	f.addRule(t, rule.KindRefund, true)
	ctx := context.Background()

	res, err := f.dispatcher.Handle(ctx, mustParse(t, checkoutCompleted))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.Outcome != OutcomeSent || res.Sent != 1 || res.Kind != rule.KindConfirmation {
		t.Fatalf("Handle() = %+v, want one confirmation sent", res)
	}

	msg := f.gw.sent[0]
	if msg.To != `"Jane Smith" <Jane@Example.com>` {
		t.Errorf("To = %q", msg.To)
	}
	if msg.Tag != "confirmation" {
		t.Errorf("Tag = %q, want confirmation", msg.Tag)
	}
	for _, want := range []string{"#12345", "$99.99", "Hello Jane"} {
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("HTML missing %q", want)
		}
	}

	bal, _ := f.ledger.Balance(ctx)
	if bal.Used != 1 {
		t.Errorf("credits used = %d, want 1", bal.Used)
	}
}

func TestDispatcher_Duplicate(t *testing.T) {
	f := newFixture(t, 10)
	f.addRule(t, rule.KindConfirmation, true)
	ctx := context.Background()

	if _, err := f.dispatcher.Handle(ctx, mustParse(t, checkoutCompleted)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	res, err := f.dispatcher.Handle(ctx, mustParse(t, checkoutCompleted))
	if err != nil {
		t.Fatalf("Handle() second error = %v", err)
	}
	if res.Outcome != OutcomeDuplicate {
		t.Errorf("second Handle() outcome = %q, want duplicate", res.Outcome)
	}
	if len(f.gw.sent) != 1 {
		t.Errorf("sent %d messages, want 1", len(f.gw.sent))
	}

	rec, err := f.events.Get(ctx, "evt_checkout")
	if err != nil || rec == nil || !rec.Done || rec.Sent != 1 {
		t.Errorf("event record = %+v, %v; want done with 1 sent", rec, err)
	}
}

func TestDispatcher_Ignored(t *testing.T) {
	f := newFixture(t, 10)
	f.addRule(t, rule.KindRefund, true)

	tests := []struct {
		name    string
		payload string
		reason  string
	}{
		{"unhandled type", `{"id":"evt_1","type":"invoice.paid","data":{"object":{}}}`, "unhandled event type"},
		{"no email", `{"id":"evt_2","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`, "event has no customer email"},
		{"no rules", checkoutCompleted, "no active rules"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.dispatcher.Handle(context.Background(), mustParse(t, tt.payload))
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if res.Outcome != OutcomeIgnored || res.Reason != tt.reason {
				t.Errorf("Handle() = %+v, want ignored with %q", res, tt.reason)
			}
		})
	}
}

func TestDispatcher_GatewayFailureRefundsCredit(t *testing.T) {
	f := newFixture(t, 10)
	f.addRule(t, rule.KindConfirmation, true)
	f.gw.fail = &gateway.DeliveryError{Message: "mailbox unavailable"}
	ctx := context.Background()

	res, err := f.dispatcher.Handle(ctx, mustParse(t, checkoutCompleted))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.Outcome != OutcomeFailed || res.Failed != 1 || len(res.Errors) != 1 {
		t.Errorf("Handle() = %+v, want one failure", res)
	}

	bal, _ := f.ledger.Balance(ctx)
	if bal.Used != 0 {
		t.Errorf("credits used = %d, want refunded to 0", bal.Used)
	}
}

func TestDispatcher_InsufficientCredits(t *testing.T) {
	f := newFixture(t, 1)
	f.addRule(t, rule.KindConfirmation, true)
	f.addRule(t, rule.KindConfirmation, true)

	res, err := f.dispatcher.Handle(context.Background(), mustParse(t, checkoutCompleted))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.Outcome != OutcomePartial || res.Sent != 1 || res.Failed != 1 {
		t.Fatalf("Handle() = %+v, want partial 1/1", res)
	}
	if !strings.Contains(res.Errors[0], credits.ErrInsufficient.Error()) {
		t.Errorf("error = %q, want insufficient credits", res.Errors[0])
	}
}

type brokenRules struct{}

func (brokenRules) ActiveByKind(ctx context.Context, kind rule.Kind) ([]*rule.Rule, error) {
	return nil, errors.New("database closed")
}

func TestDispatcher_RuleLookupError(t *testing.T) {
	f := newFixture(t, 10)
	d := NewDispatcher(brokenRules{}, f.ledger, f.gw, f.events, compose.Sender{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, err := d.Handle(context.Background(), mustParse(t, checkoutCompleted)); err == nil {
		t.Fatal("Handle() expected error")
	}
	if rec, _ := f.events.Get(context.Background(), "evt_checkout"); rec != nil {
		t.Error("failed event was recorded, redelivery would be dropped")
	}
}

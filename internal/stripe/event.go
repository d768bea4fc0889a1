package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/foxzi/postcard/internal/rule"
	"github.com/foxzi/postcard/internal/template"
)

// Event types that trigger automated emails
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventCheckoutExpired       = "checkout.session.expired"
	EventSubscriptionCancelled = "customer.subscription.deleted"
	EventChargeRefunded        = "charge.refunded"
)

// ErrInvalidEvent is returned for payloads that are not Stripe events
var ErrInvalidEvent = errors.New("invalid stripe event")

var eventKinds = map[string]rule.Kind{
	EventCheckoutCompleted:     rule.KindConfirmation,
	EventCheckoutExpired:       rule.KindAbandonedCart,
	EventSubscriptionCancelled: rule.KindCancellation,
	EventChargeRefunded:        rule.KindRefund,
}

// KindFor maps an event type to the rule kind it triggers
func KindFor(eventType string) (rule.Kind, bool) {
	kind, ok := eventKinds[eventType]
	return kind, ok
}

// Event is the subset of a Stripe event envelope used here
type Event struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Created  int64  `json:"created"`
	Livemode bool   `json:"livemode"`
	Data     struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes a webhook payload
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", ErrInvalidEvent)
	}
	return &ev, nil
}

type party struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// object covers the fields of checkout sessions, charges and subscriptions
type object struct {
	ID              string            `json:"id"`
	CustomerEmail   string            `json:"customer_email"`
	ReceiptEmail    string            `json:"receipt_email"`
	CustomerDetails *party            `json:"customer_details"`
	BillingDetails  *party            `json:"billing_details"`
	AmountTotal     int64             `json:"amount_total"`
	Amount          int64             `json:"amount"`
	AmountRefunded  int64             `json:"amount_refunded"`
	Currency        string            `json:"currency"`
	Metadata        map[string]string `json:"metadata"`
}

// Details is the customer and order data carried by an event
type Details struct {
	Email        string
	Name         string
	OrderID      string
	OrderTotal   string
	CartItems    string
	RefundAmount string
}

// Details extracts customer data from the event's object
func (e *Event) Details() (*Details, error) {
	if len(e.Data.Object) == 0 {
		return nil, fmt.Errorf("%w: event %s has no object", ErrInvalidEvent, e.ID)
	}

	var obj object
	if err := json.Unmarshal(e.Data.Object, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	d := &Details{
		OrderID:   obj.Metadata["order_id"],
		CartItems: obj.Metadata["cart_items"],
	}

	for _, p := range []*party{obj.CustomerDetails, obj.BillingDetails} {
		if p == nil {
			continue
		}
		if d.Email == "" {
			d.Email = p.Email
		}
		if d.Name == "" {
			d.Name = p.Name
		}
	}
	d.Email = firstNonEmpty(d.Email, obj.CustomerEmail, obj.ReceiptEmail, obj.Metadata["email"])
	d.Name = firstNonEmpty(d.Name, obj.Metadata["name"])

	if d.OrderID == "" && obj.ID != "" {
		d.OrderID = "#" + obj.ID
	}
	if total := firstPositive(obj.AmountTotal, obj.Amount); total > 0 {
		d.OrderTotal = FormatAmount(total, obj.Currency)
	}
	if obj.AmountRefunded > 0 {
		d.RefundAmount = FormatAmount(obj.AmountRefunded, obj.Currency)
	}

	return d, nil
}

// Values returns placeholder values for rendering. Missing data leaves the
// token out so its literal text survives substitution.
func (d *Details) Values(company string) map[template.Token]string {
	values := map[template.Token]string{}
	set := func(tok template.Token, v string) {
		if v = strings.TrimSpace(v); v != "" {
			values[tok] = v
		}
	}
	set(template.TokenCustomerName, d.Name)
	set(template.TokenOrderID, d.OrderID)
	set(template.TokenOrderTotal, d.OrderTotal)
	set(template.TokenCartItems, d.CartItems)
	set(template.TokenRefundAmount, d.RefundAmount)
	set(template.TokenCompanyName, company)
	return values
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstPositive(values ...int64) int64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

package compose

import (
	"strings"
	"testing"
	"time"

	"github.com/foxzi/postcard/internal/template"
)

func TestSender_Message(t *testing.T) {
	sender := Sender{Company: "ACME Store", From: "shop@acme.test", ReplyTo: "help@acme.test"}
	content := Content{
		Input: template.Input{
			Subject:      "Your order {order_id} from {company_name}",
			HeroTitle:    "ORDER CONFIRMED",
			BodyText:     "Thanks {customer_name}, total {order_total}.",
			PrimaryColor: "#4f46e5",
		},
		Variant: template.VariantClassic,
		Values: map[template.Token]string{
			template.TokenOrderID:    "#A1",
			template.TokenOrderTotal: "$10.00",
		},
		Tag: "confirmation",
	}
	now := time.Date(2031, 5, 1, 0, 0, 0, 0, time.UTC)

	msg := sender.Message(content, Recipient{Email: "jane@example.com", Name: "Jane Smith"}, now)

	if msg.Subject != "Your order #A1 from ACME Store" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if msg.From != `"ACME Store" <shop@acme.test>` {
		t.Errorf("From = %q", msg.From)
	}
	if msg.To != `"Jane Smith" <jane@example.com>` {
		t.Errorf("To = %q", msg.To)
	}
	if msg.ReplyTo != "help@acme.test" || msg.Tag != "confirmation" {
		t.Errorf("ReplyTo/Tag = %q/%q", msg.ReplyTo, msg.Tag)
	}
	for _, want := range []string{"Jane Smith", "$10.00", "2031", "jane@example.com"} {
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	if !strings.Contains(msg.Text, "Hello Jane,") {
		t.Errorf("Text missing greeting:\n%s", msg.Text)
	}
}

func TestSender_ContextPrecedence(t *testing.T) {
	sender := Sender{Company: "ACME Store"}
	rc := sender.Context(
		Recipient{Email: "bob@example.com"},
		map[template.Token]string{template.TokenCompanyName: "Override Inc"},
		time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	)

	if rc.Values[template.TokenCompanyName] != "Override Inc" {
		t.Errorf("company = %q, want explicit value to win", rc.Values[template.TokenCompanyName])
	}
	if _, ok := rc.Values[template.TokenCustomerName]; ok {
		t.Error("customer name set without a recipient name")
	}
	if rc.GreetingName != "bob" || rc.Year != 2030 {
		t.Errorf("GreetingName/Year = %q/%d", rc.GreetingName, rc.Year)
	}
}

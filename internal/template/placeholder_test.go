package template

import (
	"strings"
	"testing"
)

func TestSubstitutePlaceholders(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "customer and order",
			in:   "{customer_name} ordered {order_id}",
			want: "John Doe ordered #12345",
		},
		{
			name: "no tokens",
			in:   "Thank you for your order.",
			want: "Thank you for your order.",
		},
		{
			name: "unknown token",
			in:   "{not_a_token}",
			want: "{not_a_token}",
		},
		{
			name: "repeated tokens",
			in:   "{company_name} loves you, {customer_name}. - {company_name}",
			want: "ACME Store loves you, John Doe. - ACME Store",
		},
		{
			name: "all tokens",
			in:   "{customer_name}|{order_id}|{order_total}|{cart_items}|{refund_amount}|{company_name}",
			want: "John Doe|#12345|$99.99|1x Product ($49.99)|$99.99|ACME Store",
		},
		{
			name: "malformed braces",
			in:   "{customer_name {order_id",
			want: "{customer_name {order_id",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SubstitutePlaceholders(tt.in); got != tt.want {
				t.Errorf("SubstitutePlaceholders(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSubstitute_PartialValues(t *testing.T) {
	values := map[Token]string{
		TokenCustomerName: "Jane Smith",
		TokenRefundAmount: "€12.00",
	}

	got := Substitute("{customer_name}: refund {refund_amount} for {order_id}", values)
	want := "Jane Smith: refund €12.00 for {order_id}"
	if got != want {
		t.Errorf("Substitute() = %q, want %q", got, want)
	}
}

func TestSubstitute_ValueContainingToken(t *testing.T) {
	values := map[Token]string{
		TokenCustomerName: "{order_id}",
		TokenOrderID:      "#1",
	}

	// Replacement happens in one pass, so substituted text is not rescanned.
	got := Substitute("{customer_name} {order_id}", values)
	if got != "{order_id} #1" {
		t.Errorf("Substitute() = %q, want %q", got, "{order_id} #1")
	}
}

func TestTokens_HavePreviewValues(t *testing.T) {
	for _, tok := range Tokens() {
		if previewValues[tok] == "" {
			t.Errorf("token %s has no preview value", tok)
		}
		if TokenDescriptions[tok] == "" {
			t.Errorf("token %s has no description", tok)
		}
	}
}

func TestPreviewValues_ReturnsCopy(t *testing.T) {
	values := PreviewValues()
	values[TokenCustomerName] = "Mallory"

	if got := SubstitutePlaceholders("{customer_name}"); got != "John Doe" {
		t.Errorf("SubstitutePlaceholders() = %q after mutating a copy, want John Doe", got)
	}
	html := Render(Input{BodyText: "Hi {customer_name}"}, VariantMinimal, testNow)
	if !strings.Contains(html, "Hi John Doe") {
		t.Error("Render() picked up a mutated preview value")
	}
}

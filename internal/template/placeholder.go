package template

import (
	"maps"
	"strings"
)

// Token is a placeholder recognized inside body text
type Token string

const (
	TokenCustomerName Token = "{customer_name}"
	TokenOrderID      Token = "{order_id}"
	TokenOrderTotal   Token = "{order_total}"
	TokenCartItems    Token = "{cart_items}"
	TokenRefundAmount Token = "{refund_amount}"
	TokenCompanyName  Token = "{company_name}"
)

// Tokens returns the closed set of placeholder tokens
func Tokens() []Token {
	return []Token{
		TokenCustomerName,
		TokenOrderID,
		TokenOrderTotal,
		TokenCartItems,
		TokenRefundAmount,
		TokenCompanyName,
	}
}

var previewValues = map[Token]string{
	TokenCustomerName: "John Doe",
	TokenOrderID:      "#12345",
	TokenOrderTotal:   "$99.99",
	TokenCartItems:    "1x Product ($49.99)",
	TokenRefundAmount: "$99.99",
	TokenCompanyName:  "ACME Store",
}

// TokenDescriptions documents each token for editors
var TokenDescriptions = map[Token]string{
	TokenCustomerName: "Customer's name",
	TokenOrderID:      "Order ID",
	TokenOrderTotal:   "Order total",
	TokenCartItems:    "Items left in cart",
	TokenRefundAmount: "Refund amount",
	TokenCompanyName:  "Your company name",
}

var previewReplacer = newReplacer(previewValues)

// PreviewValues returns a copy of the sample values shown in previews
func PreviewValues() map[Token]string {
	return maps.Clone(previewValues)
}

// SubstitutePlaceholders replaces every known token with its preview value.
// Unknown tokens are left as they are.
func SubstitutePlaceholders(text string) string {
	return previewReplacer.Replace(text)
}

// Substitute replaces known tokens present in values in a single pass.
// Tokens without a value, and anything outside the token set, stay verbatim.
func Substitute(text string, values map[Token]string) string {
	if len(values) == 0 || !strings.Contains(text, "{") {
		return text
	}
	return newReplacer(values).Replace(text)
}

func newReplacer(values map[Token]string) *strings.Replacer {
	pairs := make([]string, 0, len(values)*2)
	for _, tok := range Tokens() {
		if v, ok := values[tok]; ok {
			pairs = append(pairs, string(tok), v)
		}
	}
	return strings.NewReplacer(pairs...)
}

package rule

import "github.com/foxzi/postcard/internal/template"

const (
	defaultPrimaryColor    = "#4f46e5"
	defaultBackgroundColor = "#ffffff"
)

type preset struct {
	title    string
	subject  string
	hero     string
	subtitle string
	body     string
	cta      string
}

var presets = map[Kind]preset{
	KindConfirmation: {
		title:    "Purchase Confirmation Email",
		subject:  "Thank you for your purchase!",
		hero:     "ORDER CONFIRMED",
		subtitle: "Your order has been confirmed and is being processed",
		body:     "Thank you for your order {order_id}. Order total: {order_total}.\nWe'll send you another email when your order ships.",
		cta:      "View Order",
	},
	KindAbandonedCart: {
		title:    "Abandoned Cart Email",
		subject:  "You left something in your cart",
		hero:     "YOU'RE IN LUCK!",
		subtitle: "That item you loved is still waiting for you",
		body:     "We noticed you left some items in your cart:\n{cart_items}\nUse code COMEBACK for 10% off your purchase if you complete your order within the next 24 hours.",
		cta:      "Complete Purchase",
	},
	KindCancellation: {
		title:    "Cancellation Email",
		subject:  "We're sorry to see you go",
		hero:     "SUBSCRIPTION CANCELLED",
		subtitle: "We hope to see you again soon",
		body:     "We're sorry to see you go. Your subscription has been canceled as requested.\nIf you have any feedback on how we could improve our service, please let us know.",
		cta:      "Resubscribe",
	},
	KindRefund: {
		title:    "Refund Email",
		subject:  "Your refund has been processed",
		hero:     "REFUND PROCESSED",
		subtitle: "Your money is on its way back to you",
		body:     "We've processed your refund of {refund_amount}.\nIt may take 5-10 business days to appear on your statement.",
		cta:      "Shop Again",
	},
}

// Title returns the display title for kind
func Title(kind Kind) string {
	if p, ok := presets[kind]; ok {
		return p.title
	}
	return "Email Template"
}

// Defaults returns the starting template input for kind. Unknown kinds get
// empty content with the default colors.
func Defaults(kind Kind) template.Input {
	p := presets[kind]
	return template.Input{
		Subject:          p.subject,
		HeroTitle:        p.hero,
		Subtitle:         p.subtitle,
		BodyText:         p.body,
		PrimaryColor:     defaultPrimaryColor,
		BackgroundColor:  defaultBackgroundColor,
		ShowCallToAction: p.cta != "",
		CTAText:          p.cta,
	}
}

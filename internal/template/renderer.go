package template

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"
)

//go:embed layouts/*.html
var layoutsFS embed.FS

// Preview personalization used when no real recipient is known
const (
	PreviewGreetingName = "John"
	PreviewCompany      = "ACME Store"
	PreviewRecipient    = "john.doe@example.com"

	defaultCTAURL        = "#"
	promotionalFallback  = "Learn More"
	promotionalAccentAdd = 40
)

// RenderContext carries everything a render needs besides the Input.
// The year is explicit so output does not depend on the clock.
type RenderContext struct {
	Year         int
	Values       map[Token]string
	GreetingName string
	Company      string
	Recipient    string
}

// PreviewContext returns the sample personalization for previews
func PreviewContext(now time.Time) RenderContext {
	return RenderContext{
		Year:         now.Year(),
		Values:       PreviewValues(),
		GreetingName: PreviewGreetingName,
		Company:      PreviewCompany,
		Recipient:    PreviewRecipient,
	}
}

// layout turns a prepared view into an HTML document
type layout interface {
	render(v *view) string
}

// view is the data handed to layout templates
type view struct {
	LogoURL         string
	HeroTitle       string
	Subtitle        string
	Body            template.HTML
	PrimaryColor    string
	BackgroundColor string
	AccentColor     string
	ShowCTA         bool
	CTAText         string
	CTAURL          string
	GreetingName    string
	Company         string
	Recipient       string
	Year            int
}

var layoutFuncs = template.FuncMap{"color": cssColor}

// htmlLayout renders a view through one embedded html/template file
type htmlLayout struct {
	variant Variant
	tmpl    *template.Template
}

func newHTMLLayout(v Variant) *htmlLayout {
	name := "layouts/" + string(v) + ".html"
	return &htmlLayout{
		variant: v,
		tmpl:    template.Must(template.New(string(v) + ".html").Funcs(layoutFuncs).ParseFS(layoutsFS, name)),
	}
}

func (l *htmlLayout) render(v *view) string {
	var b strings.Builder
	if err := l.tmpl.Execute(&b, v); err != nil {
		// Only reachable if a built-in layout references a missing field.
		panic(fmt.Sprintf("template: %s layout: %v", l.variant, err))
	}
	return b.String()
}

// promotionalLayout adds the gradient end color and the body CTA fallback
type promotionalLayout struct {
	*htmlLayout
}

func (l promotionalLayout) render(v *view) string {
	pv := *v
	pv.AccentColor = DeriveAccentColor(v.PrimaryColor, promotionalAccentAdd)
	if !pv.ShowCTA && pv.CTAText == "" {
		pv.CTAText = promotionalFallback
	}
	return l.htmlLayout.render(&pv)
}

var layouts = map[Variant]layout{
	VariantModern:      newHTMLLayout(VariantModern),
	VariantMinimal:     newHTMLLayout(VariantMinimal),
	VariantClassic:     newHTMLLayout(VariantClassic),
	VariantPromotional: promotionalLayout{newHTMLLayout(VariantPromotional)},
}

// Render produces the preview HTML of input for variant. Unknown variants
// render as DefaultVariant.
func Render(input Input, variant Variant, now time.Time) string {
	return RenderWith(input, variant, PreviewContext(now))
}

// RenderWith produces the HTML of input for variant with explicit
// personalization.
func RenderWith(input Input, variant Variant, rc RenderContext) string {
	l, ok := layouts[variant]
	if !ok {
		l = layouts[DefaultVariant]
	}
	return l.render(newView(input, rc))
}

func newView(input Input, rc RenderContext) *view {
	ctaURL := input.CTAURL
	if ctaURL == "" {
		ctaURL = defaultCTAURL
	}
	return &view{
		LogoURL:         input.LogoURL,
		HeroTitle:       input.HeroTitle,
		Subtitle:        input.Subtitle,
		Body:            bodyHTML(input.BodyText, rc.Values),
		PrimaryColor:    input.PrimaryColor,
		BackgroundColor: input.BackgroundColor,
		ShowCTA:         input.ShowCallToAction,
		CTAText:         input.CTAText,
		CTAURL:          ctaURL,
		GreetingName:    rc.GreetingName,
		Company:         rc.Company,
		Recipient:       rc.Recipient,
		Year:            rc.Year,
	}
}

// RenderText produces the plain-text alternative of input
func RenderText(input Input, rc RenderContext) string {
	var b strings.Builder

	if input.HeroTitle != "" {
		b.WriteString(input.HeroTitle)
		b.WriteString("\n")
	}
	if input.Subtitle != "" {
		b.WriteString(input.Subtitle)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if rc.GreetingName != "" {
		fmt.Fprintf(&b, "Hello %s,\n\n", rc.GreetingName)
	} else {
		b.WriteString("Hello,\n\n")
	}

	if body := strings.TrimSpace(plainText(input.BodyText, rc.Values)); body != "" {
		b.WriteString(body)
		b.WriteString("\n\n")
	}

	if input.ShowCallToAction && input.CTAText != "" {
		url := input.CTAURL
		if url == "" {
			url = defaultCTAURL
		}
		fmt.Fprintf(&b, "%s: %s\n\n", input.CTAText, url)
	}

	if rc.Company != "" {
		fmt.Fprintf(&b, "Best regards,\n%s\n\n", rc.Company)
		fmt.Fprintf(&b, "© %d %s. All rights reserved.\n", rc.Year, rc.Company)
	}
	if rc.Recipient != "" {
		fmt.Fprintf(&b, "This email was sent to %s\n", rc.Recipient)
	}

	return b.String()
}

package template

import (
	"html"
	"html/template"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	bodyPolicyOnce sync.Once
	bodyPolicy     *bluemonday.Policy

	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// bodyHTML substitutes tokens, strips markup that is unsafe in an email body
// and turns line breaks into <br>.
func bodyHTML(text string, values map[Token]string) template.HTML {
	clean := bodySanitizer().Sanitize(Substitute(text, values))
	clean = strings.ReplaceAll(clean, "\r\n", "\n")
	return template.HTML(strings.ReplaceAll(clean, "\n", "<br>\n"))
}

// plainText substitutes tokens and removes every tag.
func plainText(text string, values map[Token]string) string {
	return html.UnescapeString(textSanitizer().Sanitize(Substitute(text, values)))
}

// bodySanitizer keeps inline text formatting only. Images and links are
// stripped so the logo and CTA blocks stay the only <img> and <a> elements
// of a rendered email; the text inside a stripped link is kept.
func bodySanitizer() *bluemonday.Policy {
	bodyPolicyOnce.Do(func() {
		policy := bluemonday.NewPolicy()
		policy.AllowElements(
			"b", "strong", "i", "em", "u", "s", "small", "mark",
			"sub", "sup", "br", "p", "span", "blockquote",
			"ul", "ol", "li",
		)
		bodyPolicy = policy
	})
	return bodyPolicy
}

func textSanitizer() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}

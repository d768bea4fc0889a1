package template

import (
	"fmt"
	"html/template"
	"regexp"
	"strconv"
	"strings"
)

// cssColorPattern matches hex colors, named colors and rgb()/hsl() functions
// with numeric arguments.
var cssColorPattern = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]{3,20}|(rgba?|hsla?)\(\s*[0-9.%]+(\s*[,/\s]\s*[0-9.%]+){2,3}\s*\))$`)

// DeriveAccentColor shifts every channel of a #RRGGBB color by delta and
// clamps the result to [0,255]. Anything that is not a well-formed 6-digit
// hex color is returned unchanged.
func DeriveAccentColor(color string, delta int) string {
	if !strings.HasPrefix(color, "#") || len(color) != 7 {
		return color
	}

	rgb, err := strconv.ParseUint(color[1:], 16, 32)
	if err != nil {
		return color
	}

	r := clampChannel(int(rgb>>16&0xff) + delta)
	g := clampChannel(int(rgb>>8&0xff) + delta)
	b := clampChannel(int(rgb&0xff) + delta)

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func clampChannel(v int) int {
	return min(255, max(0, v))
}

// cssColor marks well-formed color values as safe for style attributes.
// Anything else is left to html/template, which replaces it with ZgotmplZ.
func cssColor(color string) any {
	if cssColorPattern.MatchString(color) {
		return template.CSS(color)
	}
	return color
}

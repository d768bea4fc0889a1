package stripe

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
)

var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
	"CAD": "CA$",
	"AUD": "A$",
}

// FormatAmount renders an amount in minor units, e.g. 9999 usd as "$99.99".
// Currencies without a known symbol get the ISO code as suffix.
func FormatAmount(minor int64, code string) string {
	scale := 2
	iso := strings.ToUpper(strings.TrimSpace(code))
	if unit, err := currency.ParseISO(iso); err == nil {
		scale, _ = currency.Standard.Rounding(unit)
		iso = unit.String()
	}

	sign := ""
	abs := uint64(minor)
	if minor < 0 {
		sign = "-"
		abs = -abs // exact for MinInt64
	}

	number := strconv.FormatUint(abs, 10)
	if scale > 0 {
		if len(number) <= scale {
			number = strings.Repeat("0", scale-len(number)+1) + number
		}
		cut := len(number) - scale
		number = number[:cut] + "." + number[cut:]
	}

	if sym, ok := symbols[iso]; ok {
		return sign + sym + number
	}
	if iso == "" {
		return sign + number
	}
	return fmt.Sprintf("%s%s %s", sign, number, iso)
}

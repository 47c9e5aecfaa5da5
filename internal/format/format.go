// Package format renders dashboard numbers the way they are shown to users.
package format

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Money renders an amount with thousands separators and two decimals,
// e.g. 10900000 -> "$10,900,000.00".
func Money(v float64) string {
	if s, ok := nonFinite(v); ok {
		return s
	}
	return "$" + printer.Sprintf("%.2f", v)
}

// Amount is Money without the currency sign.
func Amount(v float64) string {
	if s, ok := nonFinite(v); ok {
		return s
	}
	return printer.Sprintf("%.2f", v)
}

// Ratio renders a student-faculty ratio to one decimal.
func Ratio(v float64) string {
	if s, ok := nonFinite(v); ok {
		return s
	}
	return printer.Sprintf("%.1f", v)
}

// Count renders an integer with thousands separators.
func Count(n int) string {
	return printer.Sprintf("%d", n)
}

func nonFinite(v float64) (string, bool) {
	switch {
	case math.IsInf(v, 1):
		return "∞", true
	case math.IsInf(v, -1):
		return "-∞", true
	case math.IsNaN(v):
		return "n/a", true
	}
	return "", false
}

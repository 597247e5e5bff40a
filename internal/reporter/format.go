package reporter

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	lakh  = decimal.NewFromInt(100_000)
	crore = decimal.NewFromInt(10_000_000)
)

// FormatIndianCurrency renders an amount for display. Values of a lakh
// (1,00,000) or more compact to lakh/crore multiples; smaller values
// keep full digits grouped in the Indian numbering system, where the
// last three integer digits form one group and every group above that
// holds two. Zero renders as ₹0 and the sign sits outside the symbol:
//
//	₹12,345.00   ₹1.50 lakh   ₹1 crore   -₹1 lakh
func FormatIndianCurrency(d decimal.Decimal) string {
	if d.IsZero() {
		return "₹0"
	}

	negative := d.IsNegative()
	abs := d.Abs()

	var out string
	switch {
	case abs.GreaterThanOrEqual(crore):
		out = "₹" + compactUnit(abs.Div(crore)) + " crore"
	case abs.GreaterThanOrEqual(lakh):
		out = "₹" + compactUnit(abs.Div(lakh)) + " lakh"
	default:
		fixed := abs.StringFixed(2)
		intPart, fracPart := fixed, ""
		if i := strings.IndexByte(fixed, '.'); i >= 0 {
			intPart, fracPart = fixed[:i], fixed[i:]
		}
		out = "₹" + groupIndianDigits(intPart) + fracPart
	}

	if negative {
		out = "-" + out
	}
	return out
}

// compactUnit renders a lakh or crore multiple: whole multiples drop
// the decimals, everything else keeps two.
func compactUnit(v decimal.Decimal) string {
	if v.Equal(v.Truncate(0)) {
		return v.Truncate(0).String()
	}
	return v.StringFixed(2)
}

func groupIndianDigits(s string) string {
	if len(s) <= 3 {
		return s
	}

	head, tail := s[:len(s)-3], s[len(s)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	groups = append([]string{head}, groups...)
	return strings.Join(groups, ",") + "," + tail
}

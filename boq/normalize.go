package boq

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Normalize converts a raw cell value into a clean decimal. BOQ sheets
// write numbers every which way: currency prefixes ("TZS 2,000"),
// thousands separators, placeholder dashes, blanks. All of those must
// come out as a usable number or zero; the function never fails.
func Normalize(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	if s == "" || s == "-" || strings.EqualFold(s, "n/a") {
		return decimal.Zero
	}

	// Keep only digits, the decimal point, and a leading sign.
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}

	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

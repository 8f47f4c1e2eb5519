package pipeline

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/formats"
	"github.com/shopspring/decimal"
)

// fallbackLayouts are tried in order after a format's own layout:
// MM/DD/YYYY, YYYY-MM-DD, MM-DD-YYYY, DD/MM/YYYY.
var fallbackLayouts = []string{
	formats.LayoutUS,
	formats.LayoutISO,
	formats.LayoutUSDash,
	formats.LayoutDayUS,
}

// ParseDate parses s with layout first and then with the fallback layouts.
// The whole trimmed string must match.
func ParseDate(s, layout string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, fmt.Errorf("date cannot be empty")
	}

	layouts := fallbackLayouts
	if layout != "" {
		layouts = append([]string{layout}, fallbackLayouts...)
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("unable to parse date %q", s)
}

// ParseAmount parses a currency string into an exact decimal. It accepts a
// leading sign, a "$" symbol, thousands separators and (1.23) negatives.
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(s)
	cleaned := raw

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = strings.TrimSuffix(strings.TrimPrefix(cleaned, "("), ")")
	}
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(cleaned), "+"))

	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// parseOptionalAmount treats a blank cell as zero.
func parseOptionalAmount(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return ParseAmount(s)
}

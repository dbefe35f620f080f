package normalize

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Amount parses a human-formatted monetary string ("1,234.56 RWF", "RWF 5 000")
// honoring the configured separators. Returns false when nothing numeric remains.
func Amount(s string, opts Options) (decimal.Decimal, bool) {
	dec := opts.DecimalSeparator
	if dec == "" {
		dec = "."
	}
	thou := opts.ThousandsSeparator

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		case strings.ContainsRune(dec, r):
			b.WriteRune('.')
		case thou != "" && strings.ContainsRune(thou, r):
			// thousands separator, dropped
		}
	}
	cleaned := b.String()
	if cleaned == "" || cleaned == "-" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Number is Amount without currency semantics; kept separate so field types
// "amount" and "number" can diverge later.
func Number(s string, opts Options) (decimal.Decimal, bool) {
	return Amount(s, opts)
}

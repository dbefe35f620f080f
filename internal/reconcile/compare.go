package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ebmtools/invoice-validator/constants"
	"github.com/ebmtools/invoice-validator/internal/normalize"
)

// compareValues applies the per-field-type comparator. Both sides are known to
// be present; the caller has already handled missing/unverified.
func compareValues(field constants.Field, tolerance decimal.Decimal, qr, text any) (bool, string) {
	switch field {
	case constants.FieldTIN, constants.FieldBuyerTIN:
		a, b := normalize.Digits(asString(qr)), normalize.Digits(asString(text))
		if a == b {
			return true, ""
		}
		return false, fmt.Sprintf("TIN digits differ: %s vs %s", a, b)

	case constants.FieldInvoiceNumber:
		a, b := normalize.CanonicalInvoiceNo(asString(qr)), normalize.CanonicalInvoiceNo(asString(text))
		if a == b {
			return true, ""
		}
		return false, fmt.Sprintf("invoice numbers differ: %s vs %s", a, b)

	case constants.FieldIssueDate:
		a, aok := asDate(qr)
		b, bok := asDate(text)
		if !aok || !bok {
			return false, "value is not a date"
		}
		if normalize.CalendarDate(a).Equal(normalize.CalendarDate(b)) {
			return true, ""
		}
		return false, fmt.Sprintf("dates differ: %s vs %s", a.Format("2006-01-02"), b.Format("2006-01-02"))

	case constants.FieldTotalAmount, constants.FieldVATAmount:
		a, aok := asDecimal(qr)
		b, bok := asDecimal(text)
		if !aok || !bok {
			return false, "value is not numeric"
		}
		diff := a.Sub(b).Abs()
		if diff.Cmp(tolerance) <= 0 {
			return true, ""
		}
		return false, fmt.Sprintf("difference %s exceeds tolerance %s", diff.String(), tolerance.String())

	case constants.FieldCurrency:
		if strings.EqualFold(strings.TrimSpace(asString(qr)), strings.TrimSpace(asString(text))) {
			return true, ""
		}
		return false, "currency codes differ"

	default:
		if strings.TrimSpace(asString(qr)) == strings.TrimSpace(asString(text)) {
			return true, ""
		}
		return false, "values differ"
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case decimal.Decimal:
		return t.String()
	case *decimal.Decimal:
		if t == nil {
			return ""
		}
		return t.String()
	case time.Time:
		return t.Format("2006-01-02")
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case *decimal.Decimal:
		if t == nil {
			return decimal.Zero, false
		}
		return *t, true
	case string:
		return normalize.Amount(t, normalize.DefaultOptions())
	default:
		return decimal.Zero, false
	}
}

func asDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		return normalize.Date(t, normalize.DefaultOptions())
	default:
		return time.Time{}, false
	}
}

package reconcile

import (
	"fmt"
	"strings"

	"github.com/ebmtools/invoice-validator/constants"
)

// maxEchoed caps how many discrepancies the one-line summary repeats verbatim.
const maxEchoed = 5

// summarize fills Summary and Discrepancies from the comparisons and
// accumulated errors. Zero errors and zero mismatched/missing fields means the
// invoice validated; anything else is reported with counts.
func summarize(res *Result) {
	var matched, mismatched, missing, unverified int
	var mismatchLines, missingLines []string

	for _, c := range res.Comparisons {
		switch c.Status {
		case constants.StatusMatch:
			matched++
		case constants.StatusMismatch:
			mismatched++
			mismatchLines = append(mismatchLines, mismatchLine(c))
		case constants.StatusMissing:
			missing++
			missingLines = append(missingLines, missingLine(c))
		case constants.StatusUnverified:
			unverified++
		}
	}

	// mismatches are more severe than missing values; errors outrank both
	res.Discrepancies = append(mismatchLines, missingLines...)

	if len(res.Errors) == 0 && mismatched == 0 && missing == 0 {
		res.Summary = fmt.Sprintf("validated: %d field(s) matched", matched)
		return
	}

	head := fmt.Sprintf("issues found: %d matched, %d mismatched, %d missing, %d error(s)",
		matched, mismatched, missing, len(res.Errors))

	echo := make([]string, 0, maxEchoed)
	for _, s := range res.Errors {
		if len(echo) == maxEchoed {
			break
		}
		echo = append(echo, s)
	}
	for _, s := range res.Discrepancies {
		if len(echo) == maxEchoed {
			break
		}
		echo = append(echo, s)
	}
	if len(echo) > 0 {
		res.Summary = head + ". " + strings.Join(echo, "; ")
	} else {
		res.Summary = head
	}
}

func mismatchLine(c FieldComparison) string {
	line := fmt.Sprintf("%s: QR=%s text=%s", c.Field, c.QRValue, c.TextValue)
	if c.Details != "" {
		line += " (" + c.Details + ")"
	}
	return line
}

func missingLine(c FieldComparison) string {
	if c.QRValue != "" {
		return fmt.Sprintf("%s: only QR value present (%s)", c.Field, c.QRValue)
	}
	return fmt.Sprintf("%s: only text value present (%s)", c.Field, c.TextValue)
}

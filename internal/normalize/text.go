package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var wsRun = regexp.MustCompile(`\s+`)

// Apply runs the full normalization pipeline on s: replacements first, then
// accent stripping, lowercasing and whitespace collapsing as configured.
func Apply(s string, opts Options) string {
	for _, r := range opts.Replacements {
		s = r.Pattern.ReplaceAllString(s, r.Replacement)
	}
	if opts.StripAccents {
		s = StripAccents(s)
	}
	if opts.Lowercase {
		s = strings.ToLower(s)
	}
	if opts.CollapseWhitespace {
		s = CollapseWhitespace(s)
	}
	return s
}

// CollapseWhitespace folds runs of whitespace into single spaces and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(wsRun.ReplaceAllString(s, " "))
}

// StripAccents removes combining marks, so "N° FACTURÉ" becomes "N° FACTURE".
func StripAccents(s string) string {
	// The chained transformer is stateful, so build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Digits keeps only ASCII digits, dropping formatting punctuation.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CanonicalInvoiceNo uppercases an invoice number and strips all whitespace.
func CanonicalInvoiceNo(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

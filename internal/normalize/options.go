package normalize

import "regexp"

// Replacement is a single pattern substitution applied before any other
// normalization step. Order matters; substitutions run in sequence.
type Replacement struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// Options are the normalization knobs a template applies uniformly to its own
// keywords and to input text before matching and extraction.
type Options struct {
	CollapseWhitespace bool
	StripAccents       bool
	Lowercase          bool
	DecimalSeparator   string
	ThousandsSeparator string
	DateFormats        []string
	Replacements       []Replacement
}

// DefaultOptions returns the options used when a template omits its options block.
func DefaultOptions() Options {
	return Options{
		CollapseWhitespace: true,
		StripAccents:       true,
		Lowercase:          true,
		DecimalSeparator:   ".",
		ThousandsSeparator: ",",
	}
}

// Package extract applies a matched template's field rules to a text snapshot,
// producing typed, normalized values with full page provenance.
package extract

// Match is one regex hit for a field. Patterns run against the template's
// normalized view of the page, so Raw is the capture as it appeared there
// (lowercased, accent-stripped per options), not the original page bytes;
// Normalized additionally collapses whitespace and is the dedupe key.
type Match struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
	Value      any    `json:"value,omitempty"`
	PageNumber int    `json:"pageNumber,omitempty"`
}

// Field is the resolved result for one template field. Value is nil when no
// pattern matched or no match coerced to the declared type.
type Field struct {
	Field      string  `json:"field"`
	Value      any     `json:"value,omitempty"`
	Raw        string  `json:"raw,omitempty"`
	PageNumber int     `json:"pageNumber,omitempty"`
	Matches    []Match `json:"matches,omitempty"`
}

// HasValue reports whether extraction produced a usable value.
func (f *Field) HasValue() bool {
	return f != nil && f.Value != nil
}

// Extraction maps field name to its extracted result.
type Extraction map[string]*Field

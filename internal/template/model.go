// Package template loads declarative field-extraction templates and selects
// the one matching a document's text. Templates are data, not code: parsers
// are a closed enum and patterns are plain regular expressions.
package template

import (
	"regexp"
	"strings"

	"github.com/ebmtools/invoice-validator/constants"
	"github.com/ebmtools/invoice-validator/internal/normalize"
)

// ParserKind selects how a field's value is pulled from text.
type ParserKind string

const (
	ParserRegex  ParserKind = "regex"
	ParserStatic ParserKind = "static"
	ParserLines  ParserKind = "lines"
)

// ValueType is the declared type a raw match is coerced to.
type ValueType string

const (
	TypeString ValueType = "string"
	TypeAmount ValueType = "amount"
	TypeNumber ValueType = "number"
	TypeDate   ValueType = "date"
	TypeRaw    ValueType = "raw"
)

// GroupPolicy collapses multiple matches for one field into a single value.
type GroupPolicy string

const (
	GroupFirst  GroupPolicy = "first"
	GroupLast   GroupPolicy = "last"
	GroupSum    GroupPolicy = "sum"
	GroupConcat GroupPolicy = "concat"
)

// Field is one compiled field rule inside a template.
type Field struct {
	Name     string
	Parser   ParserKind
	Patterns []*regexp.Regexp
	Static   string
	Type     ValueType
	Group    GroupPolicy
	Required bool

	// Compare is false for fields that are extracted for display only and
	// never reconciled against the QR payload.
	Compare   bool
	Canonical constants.Field
}

// Template is a compiled template definition, immutable after load.
type Template struct {
	Name            string
	Issuer          string
	SourcePath      string
	Keywords        []string // normalized with Options
	ExcludeKeywords []string // normalized with Options
	Options         normalize.Options
	Fields          map[string]*Field
	FieldOrder      []string // document order of the fields block
	RequiredFields  []string
}

// PrepareInput normalizes candidate text with this template's options.
func (t *Template) PrepareInput(text string) string {
	return normalize.Apply(text, t.Options)
}

// MatchesInput reports whether every keyword and no exclude keyword occurs in
// the normalized text.
func (t *Template) MatchesInput(text string) bool {
	return t.matchesPrepared(t.PrepareInput(text))
}

func (t *Template) matchesPrepared(prepared string) bool {
	if len(t.Keywords) == 0 {
		return false
	}
	for _, kw := range t.Keywords {
		if kw == "" || !strings.Contains(prepared, kw) {
			return false
		}
	}
	for _, kw := range t.ExcludeKeywords {
		if kw != "" && strings.Contains(prepared, kw) {
			return false
		}
	}
	return true
}

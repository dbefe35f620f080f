package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ebmtools/invoice-validator/internal/normalize"
	"github.com/ebmtools/invoice-validator/internal/snapshot"
	"github.com/ebmtools/invoice-validator/internal/template"
)

// Extractor runs template field rules over snapshots.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract resolves every field the template defines. A field with no match is
// still present in the result, with a nil value; absence is decided later,
// during reconciliation, not here.
func (x *Extractor) Extract(tpl *template.Template, snap *snapshot.Snapshot) Extraction {
	out := make(Extraction, len(tpl.Fields))
	for _, name := range tpl.FieldOrder {
		f := tpl.Fields[name]
		out[name] = x.extractField(tpl, f, snap)
	}
	return out
}

// MissingRequired lists required fields that resolved without a value.
func (x *Extractor) MissingRequired(tpl *template.Template, ext Extraction) []string {
	seen := make(map[string]struct{})
	var missing []string
	mark := func(name string) {
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		if !ext[name].HasValue() {
			missing = append(missing, name)
		}
	}
	for _, name := range tpl.RequiredFields {
		mark(name)
	}
	for _, name := range tpl.FieldOrder {
		if tpl.Fields[name].Required {
			mark(name)
		}
	}
	return missing
}

func (x *Extractor) extractField(tpl *template.Template, f *template.Field, snap *snapshot.Snapshot) *Field {
	if f.Parser == template.ParserStatic {
		m := Match{Raw: f.Static, Normalized: f.Static, Value: coerce(f.Static, f.Type, tpl.Options)}
		return resolve(f, []Match{m})
	}

	var matches []Match
	for _, re := range f.Patterns {
		matches = x.collect(tpl, f, re, snap)
		if len(matches) > 0 {
			break
		}
	}
	if len(matches) == 0 {
		x.logger.Debug("extract.field.no_match", "template", tpl.Name, "field", f.Name)
	}
	return resolve(f, matches)
}

// collect runs one pattern per page, falling back to the whole-document text
// when no page yields a match. Matches are deduplicated by normalized value.
func (x *Extractor) collect(tpl *template.Template, f *template.Field, re *regexp.Regexp, snap *snapshot.Snapshot) []Match {
	var matches []Match
	seen := make(map[string]struct{})

	add := func(raw string, page int) {
		normalized := normalize.CollapseWhitespace(raw)
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		matches = append(matches, Match{
			Raw:        raw,
			Normalized: normalized,
			Value:      coerce(normalized, f.Type, tpl.Options),
			PageNumber: page,
		})
	}

	for _, page := range snap.Pages {
		for _, raw := range x.matchText(f, re, tpl, page.Text) {
			add(raw, page.PageNumber)
		}
	}
	if len(matches) == 0 {
		for _, raw := range x.matchText(f, re, tpl, snap.Content) {
			add(raw, 0)
		}
	}
	return matches
}

func (x *Extractor) matchText(f *template.Field, re *regexp.Regexp, tpl *template.Template, text string) []string {
	if f.Parser == template.ParserLines {
		// Line rules see one normalized line at a time, so collapsing
		// whitespace cannot erase the line structure they anchor on.
		var out []string
		for _, line := range strings.Split(text, "\n") {
			out = append(out, findCaptures(re, tpl.PrepareInput(line))...)
		}
		return out
	}
	return findCaptures(re, tpl.PrepareInput(text))
}

// findCaptures returns, per match, the first named capture group if present,
// else the first numbered group, else the entire match.
func findCaptures(re *regexp.Regexp, text string) []string {
	groups := re.FindAllStringSubmatch(text, -1)
	if groups == nil {
		return nil
	}
	named := -1
	for i, name := range re.SubexpNames() {
		if i > 0 && name != "" {
			named = i
			break
		}
	}
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		switch {
		case named > 0 && named < len(g) && g[named] != "":
			out = append(out, g[named])
		case len(g) > 1 && g[1] != "":
			out = append(out, g[1])
		default:
			out = append(out, g[0])
		}
	}
	return out
}

// resolve collapses the match list into a single field value per the group policy.
func resolve(f *template.Field, matches []Match) *Field {
	out := &Field{Field: f.Name, Matches: matches}
	if len(matches) == 0 {
		return out
	}
	switch f.Group {
	case template.GroupLast:
		pick(out, matches[len(matches)-1])
	case template.GroupSum:
		sum := decimal.Zero
		counted := 0
		for _, m := range matches {
			if d, ok := m.Value.(decimal.Decimal); ok {
				sum = sum.Add(d)
				counted++
			}
		}
		if counted > 0 {
			out.Value = sum
		}
		out.Raw = joinRaw(matches)
	case template.GroupConcat:
		joined := joinRaw(matches)
		out.Value = joined
		out.Raw = joined
	default: // first
		pick(out, matches[0])
	}
	return out
}

func pick(out *Field, m Match) {
	out.Value = m.Value
	out.Raw = m.Raw
	out.PageNumber = m.PageNumber
}

func joinRaw(matches []Match) string {
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.Raw
	}
	return strings.Join(parts, " ")
}

// coerce converts a matched string to the field's declared type. A value that
// cannot be parsed yields nil, never an error.
func coerce(s string, t template.ValueType, opts normalize.Options) any {
	switch t {
	case template.TypeAmount, template.TypeNumber:
		if d, ok := normalize.Amount(s, opts); ok {
			return d
		}
		return nil
	case template.TypeDate:
		if d, ok := normalize.Date(s, opts); ok {
			return d
		}
		return nil
	case template.TypeRaw:
		return s
	default: // string
		return strings.TrimSpace(s)
	}
}

package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ebmtools/invoice-validator/internal/common"
)

const ebmText = `TIN: 101234567
EBM INVOICE
Invoice No: INV-2024/001
Seller TIN: 101234567
Total: 5,000.00`

func TestMatchesInput(t *testing.T) {
	store := NewStore("testdata/templates", nil)
	templates, err := store.Templates()
	require.NoError(t, err)
	require.Len(t, templates, 2)

	var ebm, proforma *Template
	for _, tpl := range templates {
		switch tpl.Name {
		case "ebm-standard":
			ebm = tpl
		case "proforma":
			proforma = tpl
		}
	}
	require.NotNil(t, ebm)
	require.NotNil(t, proforma)

	require.True(t, ebm.MatchesInput(ebmText))
	require.False(t, proforma.MatchesInput(ebmText))

	// the exclude keyword flips the verdict even with all keywords present
	require.False(t, ebm.MatchesInput(ebmText+"\nPROFORMA"))
}

func TestMatchSelectsFirstInLoadOrder(t *testing.T) {
	store := NewStore("testdata/templates", nil)
	tpl, ok, err := store.Match(ebmText)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ebm-standard", tpl.Name)

	_, ok, err = store.Match("an unrelated document")
	require.NoError(t, err)
	require.False(t, ok, "no template should match")
}

func TestExcludeKeywordMonotonicity(t *testing.T) {
	// A keyword present in the document, added as an exclude keyword, must
	// stop the template from matching that document.
	dir := t.TempDir()
	writeTemplate(t, dir, "with_exclude.yaml", `
template_name: narrowed
issuer: EBM
keywords: ["EBM INVOICE"]
exclude_keywords: ["INVOICE"]
fields:
  tin:
    pattern: 'tin[:\s]*([0-9]+)'
`)
	templates, err := LoadDir(dir, nil)
	require.NoError(t, err)
	require.False(t, templates[0].MatchesInput(ebmText))
}

func TestStoreCachesAndResets(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "one.yaml", minimalTemplate("one"))
	store := NewStore(dir, nil)

	first, err := store.Templates()
	require.NoError(t, err)
	require.Len(t, first, 1)

	writeTemplate(t, dir, "two.yaml", minimalTemplate("two"))
	cached, err := store.Templates()
	require.NoError(t, err)
	require.Len(t, cached, 1, "second call must hit the cache")

	store.Reset()
	reloaded, err := store.Templates()
	require.NoError(t, err)
	require.Len(t, reloaded, 2)
}

func TestLoadDirFailures(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"missing keywords", `
template_name: broken
issuer: X
fields:
  tin:
    pattern: '([0-9]+)'
`},
		{"unknown parser", `
template_name: broken
issuer: X
keywords: ["A"]
fields:
  tin:
    parser: script
    pattern: '([0-9]+)'
`},
		{"bad regex", `
template_name: broken
issuer: X
keywords: ["A"]
fields:
  tin:
    pattern: '([0-9'
`},
		{"unmapped compared field", `
template_name: broken
issuer: X
keywords: ["A"]
fields:
  mystery_field:
    pattern: '([0-9]+)'
`},
		{"static without value", `
template_name: broken
issuer: X
keywords: ["A"]
fields:
  currency:
    parser: static
`},
		{"required_fields references unknown field", `
template_name: broken
issuer: X
keywords: ["A"]
fields:
  tin:
    pattern: '([0-9]+)'
required_fields: ["ghost"]
`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			dir := t.TempDir()
			writeTemplate(t, dir, "broken.yaml", c.doc)
			_, err := LoadDir(dir, nil)
			require.Error(t, err)
		})
	}
}

func TestSchemaViolationIsValidationError(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "broken.yaml", `
template_name: broken
issuer: X
keywords: ["A"]
unexpected_key: true
fields:
  tin:
    pattern: '([0-9]+)'
`)
	_, err := LoadDir(dir, nil)
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestLoadDirMissingDirectory(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"), nil)
	require.Error(t, err)
}

func TestCompareExemptFieldNeedsNoMapping(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "display.yaml", `
template_name: display
issuer: X
keywords: ["A"]
fields:
  cashier_name:
    pattern: 'cashier[:\s]*([a-z ]+)'
    compare: false
`)
	templates, err := LoadDir(dir, nil)
	require.NoError(t, err)
	require.False(t, templates[0].Fields["cashier_name"].Compare)
}

func minimalTemplate(name string) string {
	return `
template_name: ` + name + `
issuer: X
keywords: ["` + name + `"]
fields:
  tin:
    pattern: '([0-9]+)'
`
}

func writeTemplate(t *testing.T, dir, name, doc string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
}

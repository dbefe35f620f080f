package template

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ebmtools/invoice-validator/constants"
	"github.com/ebmtools/invoice-validator/internal/common"
	"github.com/ebmtools/invoice-validator/internal/normalize"
)

// Document mirrors the YAML shape of one template file.
type Document struct {
	TemplateName    string              `yaml:"template_name"`
	Issuer          string              `yaml:"issuer"`
	Keywords        []string            `yaml:"keywords"`
	ExcludeKeywords []string            `yaml:"exclude_keywords"`
	Options         *OptionsDoc         `yaml:"options"`
	Fields          map[string]FieldDoc `yaml:"fields"`
	RequiredFields  []string            `yaml:"required_fields"`
}

// OptionsDoc is the optional normalization block of a template file.
type OptionsDoc struct {
	CollapseWhitespace *bool            `yaml:"collapse_whitespace"`
	StripAccents       *bool            `yaml:"strip_accents"`
	Lowercase          *bool            `yaml:"lowercase"`
	DecimalSeparator   string           `yaml:"decimal_separator"`
	ThousandsSeparator string           `yaml:"thousands_separator"`
	DateFormats        []string         `yaml:"date_formats"`
	Replacements       []ReplacementDoc `yaml:"replacements"`
}

// ReplacementDoc is one ordered substitution, applied before all other processing.
type ReplacementDoc struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// FieldDoc is the YAML shape of one field rule.
type FieldDoc struct {
	Parser      string   `yaml:"parser"`
	Pattern     string   `yaml:"pattern"`
	Patterns    []string `yaml:"patterns"`
	StaticValue string   `yaml:"static_value"`
	Type        string   `yaml:"type"`
	Group       string   `yaml:"group"`
	Required    bool     `yaml:"required"`
	Compare     *bool    `yaml:"compare"`
}

// LoadDir loads every .yaml/.yml template document under dir, recursively, in
// lexical order. Any malformed document aborts the load: template problems are
// deployment defects, not per-document data issues.
func LoadDir(dir string, logger *slog.Logger) ([]*Template, error) {
	if logger == nil {
		logger = slog.Default()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, common.NewAppError("TEMPLATE_DIR", fmt.Sprintf("templates directory %q not readable", dir), err)
	}
	if !info.IsDir() {
		return nil, common.NewAppError("TEMPLATE_DIR", fmt.Sprintf("%q is not a directory", dir), common.ErrInvalidInput)
	}

	schema := buildTemplateSchema()
	var templates []*Template
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
		default:
			return nil
		}
		tpl, err := loadFile(path, schema)
		if err != nil {
			return fmt.Errorf("template %s: %w", path, err)
		}
		logger.Debug("templates.loaded_file", "path", path, "template", tpl.Name, "fields", len(tpl.Fields))
		templates = append(templates, tpl)
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	if len(templates) == 0 {
		return nil, common.NewAppError("TEMPLATE_DIR", fmt.Sprintf("no template documents found under %q", dir), common.ErrNotFound)
	}
	logger.Info("templates.loaded", "dir", dir, "count", len(templates))
	return templates, nil
}

func loadFile(path string, schema map[string]any) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Structural check first, against the JSON-Schema, so error messages name
	// the offending key rather than a Go type mismatch.
	var generic map[string]any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, common.WrapError(err, "parse yaml")
	}
	asJSON, err := json.Marshal(generic)
	if err != nil {
		return nil, common.WrapError(err, "convert document")
	}
	if err := validateAgainstSchema(schema, asJSON); err != nil {
		return nil, err
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, common.WrapError(err, "parse yaml")
	}
	order, err := fieldOrder(data)
	if err != nil {
		return nil, err
	}
	return compile(&doc, order, path)
}

// fieldOrder recovers the document order of the fields block, which Go maps
// discard. Comparison output follows this order.
func fieldOrder(data []byte) ([]string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	top := root.Content[0]
	for i := 0; i+1 < len(top.Content); i += 2 {
		if top.Content[i].Value != "fields" {
			continue
		}
		fieldsNode := top.Content[i+1]
		var order []string
		for j := 0; j < len(fieldsNode.Content); j += 2 {
			order = append(order, fieldsNode.Content[j].Value)
		}
		return order, nil
	}
	return nil, nil
}

func compile(doc *Document, order []string, path string) (*Template, error) {
	opts, err := compileOptions(doc.Options)
	if err != nil {
		return nil, err
	}

	tpl := &Template{
		Name:           doc.TemplateName,
		Issuer:         doc.Issuer,
		SourcePath:     path,
		Options:        opts,
		Fields:         make(map[string]*Field, len(doc.Fields)),
		FieldOrder:     order,
		RequiredFields: doc.RequiredFields,
	}
	for _, kw := range doc.Keywords {
		tpl.Keywords = append(tpl.Keywords, normalize.Apply(kw, opts))
	}
	for _, kw := range doc.ExcludeKeywords {
		tpl.ExcludeKeywords = append(tpl.ExcludeKeywords, normalize.Apply(kw, opts))
	}

	for _, name := range order {
		fd := doc.Fields[name]
		f, err := compileField(name, fd)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		tpl.Fields[name] = f
	}
	for _, req := range doc.RequiredFields {
		if _, ok := tpl.Fields[req]; !ok {
			return nil, fmt.Errorf("required_fields names undefined field %q", req)
		}
	}
	return tpl, nil
}

func compileField(name string, fd FieldDoc) (*Field, error) {
	f := &Field{
		Name:     name,
		Parser:   ParserKind(defaultStr(fd.Parser, string(ParserRegex))),
		Static:   fd.StaticValue,
		Type:     ValueType(defaultStr(fd.Type, string(TypeString))),
		Group:    GroupPolicy(defaultStr(fd.Group, string(GroupFirst))),
		Required: fd.Required,
		Compare:  fd.Compare == nil || *fd.Compare,
	}

	switch f.Parser {
	case ParserStatic:
		if f.Static == "" {
			return nil, fmt.Errorf("static parser requires static_value")
		}
	case ParserRegex, ParserLines:
		patterns := fd.Patterns
		if fd.Pattern != "" {
			patterns = append([]string{fd.Pattern}, patterns...)
		}
		if len(patterns) == 0 {
			return nil, fmt.Errorf("%s parser requires pattern or patterns", f.Parser)
		}
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("compile pattern %q: %w", p, err)
			}
			f.Patterns = append(f.Patterns, re)
		}
	}

	// Every compared field must resolve to a canonical field now, so a typo
	// fails the deployment instead of silently vanishing from reconciliation.
	if f.Compare {
		canonical, ok := constants.FieldFromName(name)
		if !ok {
			return nil, fmt.Errorf("no canonical field mapping for %q (set compare: false for display-only fields)", name)
		}
		f.Canonical = canonical
	}
	return f, nil
}

func compileOptions(od *OptionsDoc) (normalize.Options, error) {
	opts := normalize.DefaultOptions()
	if od == nil {
		return opts, nil
	}
	if od.CollapseWhitespace != nil {
		opts.CollapseWhitespace = *od.CollapseWhitespace
	}
	if od.StripAccents != nil {
		opts.StripAccents = *od.StripAccents
	}
	if od.Lowercase != nil {
		opts.Lowercase = *od.Lowercase
	}
	if od.DecimalSeparator != "" {
		opts.DecimalSeparator = od.DecimalSeparator
	}
	if od.ThousandsSeparator != "" {
		opts.ThousandsSeparator = od.ThousandsSeparator
	}
	opts.DateFormats = od.DateFormats
	for _, r := range od.Replacements {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return opts, fmt.Errorf("compile replacement %q: %w", r.Pattern, err)
		}
		opts.Replacements = append(opts.Replacements, normalize.Replacement{Pattern: re, Replacement: r.Replacement})
	}
	return opts, nil
}

func defaultStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

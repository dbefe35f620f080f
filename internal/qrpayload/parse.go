package qrpayload

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ebmtools/invoice-validator/constants"
	"github.com/ebmtools/invoice-validator/internal/normalize"
)

// ErrNoRecognizedFields means the text decoded fine but carried no key that
// maps to a canonical invoice field.
var ErrNoRecognizedFields = errors.New("qr payload lacked recognizable fields")

// qrKeySynonyms covers key spellings seen in QR payloads beyond the template
// field names constants already knows about.
var qrKeySynonyms = map[string]constants.Field{
	"stin":          constants.FieldTIN,
	"sellertin":     constants.FieldTIN,
	"ctin":          constants.FieldBuyerTIN,
	"buyertin":      constants.FieldBuyerTIN,
	"invno":         constants.FieldInvoiceNumber,
	"invoicenumber": constants.FieldInvoiceNumber,
	"receipt":       constants.FieldInvoiceNumber,
	"receiptno":     constants.FieldInvoiceNumber,
	"receiptnumber": constants.FieldInvoiceNumber,
	"amount":        constants.FieldTotalAmount,
	"totalamount":   constants.FieldTotalAmount,
	"totamt":        constants.FieldTotalAmount,
	"tax":           constants.FieldVATAmount,
	"taxamt":        constants.FieldVATAmount,
	"vatamount":     constants.FieldVATAmount,
	"timestamp":     constants.FieldIssueDate,
	"issuedate":     constants.FieldIssueDate,
	"invoicedate":   constants.FieldIssueDate,
	"datetime":      constants.FieldIssueDate,
	"cur":           constants.FieldCurrency,
	"ccy":           constants.FieldCurrency,
	"currencycode":  constants.FieldCurrency,
}

// Parse builds a Payload from raw QR text, trying JSON, URL query parameters,
// URL fragment parameters, then delimiter-separated key:value tokens. The
// returned payload is always usable (Raw is set) even when the error reports
// that no canonical field was recognized.
func Parse(raw string) (*Payload, error) {
	return ParseWithOptions(raw, normalize.DefaultOptions())
}

// ParseWithOptions is Parse with the caller's normalization options, so a
// matched template's date_formats disambiguate QR-side dates the same way they
// do text-side ones.
func ParseWithOptions(raw string, opts normalize.Options) (*Payload, error) {
	p := &Payload{Raw: raw, Additional: make(map[string]string)}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return p, fmt.Errorf("empty qr text")
	}

	switch {
	case strings.HasPrefix(trimmed, "{"):
		if err := parseJSON(p, trimmed, opts); err != nil {
			return p, err
		}
	case IsURL(trimmed):
		parseURL(p, trimmed, opts)
	default:
		parseTokens(p, trimmed, opts)
	}

	if p.FieldCount() == 0 {
		return p, ErrNoRecognizedFields
	}
	return p, nil
}

// IsURL reports whether the QR text is itself a URL (the shape used by
// receipt-lookup payloads).
func IsURL(raw string) bool {
	if !strings.Contains(raw, "://") {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Host returns the lowercased host of a URL-shaped payload.
func Host(raw string) (string, bool) {
	if !IsURL(raw) {
		return "", false
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return strings.ToLower(u.Hostname()), true
}

func parseJSON(p *Payload, raw string, opts normalize.Options) error {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return fmt.Errorf("parse qr json: %w", err)
	}
	for k, v := range m {
		setField(p, k, stringify(v), opts)
	}
	return nil
}

func parseURL(p *Payload, raw string, opts normalize.Options) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return
	}
	for k, vs := range u.Query() {
		if len(vs) > 0 {
			setField(p, k, vs[0], opts)
		}
	}
	if u.Fragment != "" {
		if frag, err := url.ParseQuery(u.Fragment); err == nil {
			for k, vs := range frag {
				if len(vs) > 0 {
					setField(p, k, vs[0], opts)
				}
			}
		}
	}
}

// parseTokens handles "tin:123456789;invoice:INV-007;total:5000" style text,
// accepting ';', '|', ',' or newlines between tokens and ':' or '=' inside.
func parseTokens(p *Payload, raw string, opts normalize.Options) {
	tokens := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == '|' || r == ',' || r == '\n' || r == '\r'
	})
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		sep := strings.IndexAny(tok, ":=")
		if sep <= 0 {
			continue
		}
		setField(p, tok[:sep], tok[sep+1:], opts)
	}
}

// Set routes one key/value pair into the payload by synonym lookup; used by
// enrichment resolvers that scrape label/value pairs.
func (p *Payload) Set(key, value string) {
	if p.Additional == nil {
		p.Additional = make(map[string]string)
	}
	setField(p, key, value, normalize.DefaultOptions())
}

// setField routes one key/value pair into the payload, coercing to the
// canonical field's type. Unparseable values and unknown keys are kept in
// Additional rather than dropped.
func setField(p *Payload, key, value string, opts normalize.Options) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return
	}

	canonical, ok := lookupKey(key)
	if !ok {
		p.Additional[key] = value
		return
	}
	switch canonical {
	case constants.FieldInvoiceNumber:
		p.InvoiceNumber = value
	case constants.FieldTIN:
		p.TIN = value
	case constants.FieldBuyerTIN:
		p.BuyerTIN = value
	case constants.FieldIssueDate:
		if t, ok := normalize.Date(value, opts); ok {
			p.IssueDate = &t
		} else {
			p.Additional[key] = value
		}
	case constants.FieldTotalAmount:
		if d, ok := normalize.Amount(value, opts); ok {
			p.TotalAmount = &d
		} else {
			p.Additional[key] = value
		}
	case constants.FieldVATAmount:
		if d, ok := normalize.Amount(value, opts); ok {
			p.VATAmount = &d
		} else {
			p.Additional[key] = value
		}
	case constants.FieldCurrency:
		p.Currency = strings.ToUpper(value)
	}
}

func lookupKey(key string) (constants.Field, bool) {
	k := strings.ToLower(strings.TrimSpace(key))
	if f, ok := constants.FieldFromName(k); ok {
		return f, true
	}
	// tolerate snake/camel/dash spellings: "invoiceNumber", "invoice-number"
	flat := strings.NewReplacer("_", "", "-", "", " ", "").Replace(k)
	if f, ok := qrKeySynonyms[flat]; ok {
		return f, true
	}
	return "", false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		// avoid scientific notation for large totals
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", t), "0"), ".")
	case bool:
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

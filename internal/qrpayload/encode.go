package qrpayload

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Encoding is one of the wire shapes a QR payload can take.
type Encoding string

const (
	EncodingJSON     Encoding = "json"
	EncodingQuery    Encoding = "query"
	EncodingFragment Encoding = "fragment"
	EncodingTokens   Encoding = "tokens"
)

// Encode renders a payload's canonical fields in the given encoding. Used to
// produce synthetic payloads and to verify parse round-trips.
func Encode(p *Payload, enc Encoding) (string, error) {
	fields := canonicalPairs(p)
	switch enc {
	case EncodingJSON:
		m := make(map[string]string, len(fields))
		for _, kv := range fields {
			m[kv[0]] = kv[1]
		}
		b, err := json.Marshal(m)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case EncodingQuery:
		return "https://example.test/receipt?" + encodeQuery(fields), nil
	case EncodingFragment:
		return "https://example.test/receipt#" + encodeQuery(fields), nil
	case EncodingTokens:
		parts := make([]string, 0, len(fields))
		for _, kv := range fields {
			parts = append(parts, kv[0]+":"+kv[1])
		}
		return strings.Join(parts, ";"), nil
	default:
		return "", fmt.Errorf("unknown encoding %q", enc)
	}
}

func encodeQuery(fields [][2]string) string {
	v := url.Values{}
	for _, kv := range fields {
		v.Set(kv[0], kv[1])
	}
	return v.Encode()
}

func canonicalPairs(p *Payload) [][2]string {
	var out [][2]string
	add := func(k, v string) {
		if v != "" {
			out = append(out, [2]string{k, v})
		}
	}
	add("invoice_number", p.InvoiceNumber)
	add("tin", p.TIN)
	add("buyer_tin", p.BuyerTIN)
	if p.IssueDate != nil {
		add("issue_date", p.IssueDate.Format("2006-01-02"))
	}
	if p.TotalAmount != nil {
		add("total_amount", p.TotalAmount.String())
	}
	if p.VATAmount != nil {
		add("vat_amount", p.VATAmount.String())
	}
	add("currency", p.Currency)
	return out
}

package constants

import "strings"

// Field is a canonical invoice field that participates in QR/text reconciliation.
type Field string

// Stable values (these exact strings appear in serialized results).
const (
	FieldInvoiceNumber Field = "invoice_number"
	FieldTIN           Field = "tin"
	FieldBuyerTIN      Field = "buyer_tin"
	FieldIssueDate     Field = "issue_date"
	FieldTotalAmount   Field = "total_amount"
	FieldVATAmount     Field = "vat_amount"
	FieldCurrency      Field = "currency"
)

// AllFields lists every canonical field in comparison order.
var AllFields = []Field{
	FieldInvoiceNumber,
	FieldTIN,
	FieldBuyerTIN,
	FieldIssueDate,
	FieldTotalAmount,
	FieldVATAmount,
	FieldCurrency,
}

// canonicalByName maps template field names (and their common spellings) to
// canonical fields. Template loading rejects any compared field name that is
// missing here, so a misspelled field fails at startup instead of silently
// dropping out of reconciliation.
var canonicalByName = map[string]Field{
	"invoice_number": FieldInvoiceNumber,
	"invoice_no":     FieldInvoiceNumber,
	"invoice":        FieldInvoiceNumber,
	"receipt_number": FieldInvoiceNumber,
	"tin":            FieldTIN,
	"seller_tin":     FieldTIN,
	"supplier_tin":   FieldTIN,
	"buyer_tin":      FieldBuyerTIN,
	"client_tin":     FieldBuyerTIN,
	"customer_tin":   FieldBuyerTIN,
	"issue_date":     FieldIssueDate,
	"invoice_date":   FieldIssueDate,
	"date":           FieldIssueDate,
	"total_amount":   FieldTotalAmount,
	"total":          FieldTotalAmount,
	"grand_total":    FieldTotalAmount,
	"amount_due":     FieldTotalAmount,
	"vat_amount":     FieldVATAmount,
	"vat":            FieldVATAmount,
	"tax_amount":     FieldVATAmount,
	"total_vat":      FieldVATAmount,
	"currency":       FieldCurrency,
	"currency_code":  FieldCurrency,
}

// FieldFromName resolves a template field name to its canonical field.
func FieldFromName(name string) (Field, bool) {
	f, ok := canonicalByName[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// Package qrpayload parses the decoded text of an invoice QR code into a
// canonical structured record. Payloads in the wild are JSON objects, URLs
// carrying query or fragment parameters, or delimiter-separated key:value
// tokens; all land in the same Payload shape.
package qrpayload

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payload is the canonical record parsed out of QR text. Unrecognized keys are
// preserved in Additional so nothing the issuer embedded is lost.
type Payload struct {
	Raw           string            `json:"raw"`
	InvoiceNumber string            `json:"invoiceNumber,omitempty"`
	TIN           string            `json:"tin,omitempty"`
	BuyerTIN      string            `json:"buyerTin,omitempty"`
	IssueDate     *time.Time        `json:"issueDate,omitempty"`
	TotalAmount   *decimal.Decimal  `json:"totalAmount,omitempty"`
	VATAmount     *decimal.Decimal  `json:"vatAmount,omitempty"`
	Currency      string            `json:"currency,omitempty"`
	Additional    map[string]string `json:"additional,omitempty"`
}

// FieldCount reports how many canonical fields are populated.
func (p *Payload) FieldCount() int {
	n := 0
	for _, set := range []bool{
		p.InvoiceNumber != "",
		p.TIN != "",
		p.BuyerTIN != "",
		p.IssueDate != nil,
		p.TotalAmount != nil,
		p.VATAmount != nil,
		p.Currency != "",
	} {
		if set {
			n++
		}
	}
	return n
}

// FillFrom copies canonical fields from other into still-empty slots of p.
// Values already parsed from the QR text itself are never overwritten.
func (p *Payload) FillFrom(other *Payload) {
	if other == nil {
		return
	}
	if p.InvoiceNumber == "" {
		p.InvoiceNumber = other.InvoiceNumber
	}
	if p.TIN == "" {
		p.TIN = other.TIN
	}
	if p.BuyerTIN == "" {
		p.BuyerTIN = other.BuyerTIN
	}
	if p.IssueDate == nil {
		p.IssueDate = other.IssueDate
	}
	if p.TotalAmount == nil {
		p.TotalAmount = other.TotalAmount
	}
	if p.VATAmount == nil {
		p.VATAmount = other.VATAmount
	}
	if p.Currency == "" {
		p.Currency = other.Currency
	}
}

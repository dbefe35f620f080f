// Package reconcile cross-checks QR-derived and text-derived invoice values
// field by field and synthesizes a human-readable verdict.
package reconcile

import (
	"time"

	"github.com/google/uuid"

	"github.com/ebmtools/invoice-validator/constants"
	"github.com/ebmtools/invoice-validator/internal/extract"
	"github.com/ebmtools/invoice-validator/internal/qrcode"
	"github.com/ebmtools/invoice-validator/internal/qrpayload"
)

// Errors surfaced in the result rather than returned; the run keeps going.
const (
	ErrMsgNoTemplate      = "no template matched"
	ErrMsgNoQRCode        = "no QR code detected"
	ErrMsgQRDecodeFailed  = "QR decode failed"
	ErrMsgUnsupportedFile = "unsupported file type for QR validation"
	ErrMsgPayloadNoFields = "QR payload lacked recognizable fields"
)

// Value sources referenced by FieldComparison.Sources.
const (
	SourceQR         = "qr"
	SourceEnrichment = "enrichment"
	SourceText       = "text"
)

// FieldComparison is the verdict for one canonical field.
type FieldComparison struct {
	Field      constants.Field            `json:"field"`
	Status     constants.ComparisonStatus `json:"status"`
	QRValue    string                     `json:"qrValue,omitempty"`
	TextValue  string                     `json:"textValue,omitempty"`
	Details    string                     `json:"details,omitempty"`
	PageNumber int                        `json:"pageNumber,omitempty"`
	Sources    []string                   `json:"sources,omitempty"`
}

// Result is the immutable outcome of one validation run.
type Result struct {
	ID            uuid.UUID          `json:"id"`
	FileName      string             `json:"fileName,omitempty"`
	TemplateName  string             `json:"templateName,omitempty"`
	Issuer        string             `json:"issuer,omitempty"`
	Comparisons   []FieldComparison  `json:"comparisons"`
	QRDetections  []qrcode.Detection `json:"qrDetections"`
	QRPayload     *qrpayload.Payload `json:"qrPayload,omitempty"`
	Errors        []string           `json:"errors"`
	Warnings      []string           `json:"warnings,omitempty"`
	Summary       string             `json:"summary"`
	Discrepancies []string           `json:"discrepancies,omitempty"`
	StartedAt     time.Time          `json:"startedAt"`
	CompletedAt   time.Time          `json:"completedAt"`
}

// Outcome is the complete return value of one validation run: the verdict plus
// the text extraction that fed it, for provenance.
type Outcome struct {
	Result     *Result            `json:"result"`
	Extraction extract.Extraction `json:"extraction,omitempty"`
}

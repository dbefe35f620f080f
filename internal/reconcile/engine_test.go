package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ebmtools/invoice-validator/constants"
	"github.com/ebmtools/invoice-validator/internal/common"
	"github.com/ebmtools/invoice-validator/internal/qrcode"
	"github.com/ebmtools/invoice-validator/internal/qrpayload"
	"github.com/ebmtools/invoice-validator/internal/snapshot"
	"github.com/ebmtools/invoice-validator/internal/template"
)

const engineTemplate = `template_name: ebm-standard
issuer: EBM
keywords:
  - "EBM INVOICE"
options:
  date_formats:
    - "02/01/2006"
fields:
  invoice_number:
    pattern: 'invoice no[:\s]*([a-z0-9/-]+)'
  tin:
    pattern: 'tin[:\s]*([0-9]+)'
    required: true
  issue_date:
    pattern: 'date[:\s]*([0-9/]+)'
    type: date
  total_amount:
    pattern: 'total[:\s]*([0-9.,]+)'
    type: amount
`

const invoiceText = `EBM INVOICE
Invoice No: INV-2024/001
TIN: 101234567
Date: 25/12/2024
Total: 1000.6`

type stubDecoder struct {
	detections []qrcode.Detection
	err        error
}

func (s *stubDecoder) Decode(_ context.Context, _ []byte, _ *qrcode.Options) ([]qrcode.Detection, error) {
	return s.detections, s.err
}

type stubEnricher struct {
	called bool
	ctxErr error
	fill   *qrpayload.Payload
}

func (s *stubEnricher) Enrich(ctx context.Context, p *qrpayload.Payload) bool {
	s.called = true
	s.ctxErr = ctx.Err()
	if s.fill == nil {
		return false
	}
	p.FillFrom(s.fill)
	return true
}

func testConfig() *common.Config {
	return &common.Config{
		Compare: common.CompareConfig{AmountTolerance: 1},
		Enrich:  common.EnrichConfig{Timeout: time.Second},
	}
}

func newTestEngine(t *testing.T, dec QRDecoder, enr Enricher, cfg *common.Config) *Engine {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ebm.yaml"), []byte(engineTemplate), 0o644))
	if cfg == nil {
		cfg = testConfig()
	}
	return NewEngine(template.NewStore(dir, nil), dec, enr, cfg, nil)
}

func comparisonFor(t *testing.T, res *Result, field constants.Field) FieldComparison {
	t.Helper()
	for _, c := range res.Comparisons {
		if c.Field == field {
			return c
		}
	}
	t.Fatalf("no comparison for %s", field)
	return FieldComparison{}
}

func TestValidateAllMatchWithinTolerance(t *testing.T) {
	dec := &stubDecoder{detections: []qrcode.Detection{{
		PageNumber: 1,
		Scale:      1.4,
		Text:       "tin:101234567;invoice:INV-2024/001;date:25/12/2024;total:1000",
	}}}
	eng := newTestEngine(t, dec, &stubEnricher{}, nil)

	out, err := eng.Validate(context.Background(), Input{
		FileName: "invoice.pdf",
		PDF:      []byte("%PDF-"),
		Snapshot: snapshot.New("invoice.pdf", []string{invoiceText}),
	}, nil)
	require.NoError(t, err)

	res := out.Result
	require.Empty(t, res.Errors)
	require.Equal(t, "ebm-standard", res.TemplateName)
	require.Equal(t, "EBM", res.Issuer)
	require.Len(t, res.Comparisons, 4)
	for _, c := range res.Comparisons {
		require.Equal(t, constants.StatusMatch, c.Status, "field %s: %s", c.Field, c.Details)
		require.Contains(t, c.Sources, SourceQR)
		require.Contains(t, c.Sources, SourceText)
	}
	// QR total 1000 vs text 1000.6 sits inside the tolerance of 1
	total := comparisonFor(t, res, constants.FieldTotalAmount)
	require.Equal(t, constants.StatusMatch, total.Status)
	require.Contains(t, res.Summary, "validated")
	require.Empty(t, res.Discrepancies)
}

func TestValidateAmountBeyondTolerance(t *testing.T) {
	dec := &stubDecoder{detections: []qrcode.Detection{{
		PageNumber: 1, Text: "tin:101234567;total:1005",
	}}}
	eng := newTestEngine(t, dec, &stubEnricher{}, nil)

	out, err := eng.Validate(context.Background(), Input{
		FileName: "invoice.pdf",
		Snapshot: snapshot.New("", []string{invoiceText}),
	}, nil)
	require.NoError(t, err)

	total := comparisonFor(t, out.Result, constants.FieldTotalAmount)
	require.Equal(t, constants.StatusMismatch, total.Status)
	require.Contains(t, total.Details, "tolerance")
	require.NotEmpty(t, out.Result.Discrepancies)
	require.Contains(t, out.Result.Summary, "mismatched")
}

func TestValidateNoQRKeepsTextFields(t *testing.T) {
	pages := []string{invoiceText, "page two, nothing new", "page three"}
	eng := newTestEngine(t, &stubDecoder{}, &stubEnricher{}, nil)

	out, err := eng.Validate(context.Background(), Input{
		FileName: "invoice.pdf",
		Snapshot: snapshot.New("invoice.pdf", pages),
	}, nil)
	require.NoError(t, err)

	res := out.Result
	require.Empty(t, res.QRDetections)
	require.Contains(t, res.Errors, ErrMsgNoQRCode)

	// text extraction still ran; every compared field is one-sided
	require.Equal(t, "ebm-standard", res.TemplateName)
	tin := comparisonFor(t, res, constants.FieldTIN)
	require.Equal(t, constants.StatusMissing, tin.Status)
	require.Equal(t, "101234567", tin.TextValue)
	require.Equal(t, []string{SourceText}, tin.Sources)
}

func TestValidateDecoderFailure(t *testing.T) {
	eng := newTestEngine(t, &stubDecoder{err: context.DeadlineExceeded}, &stubEnricher{}, nil)

	out, err := eng.Validate(context.Background(), Input{
		FileName: "invoice.pdf",
		Snapshot: snapshot.New("", []string{invoiceText}),
	}, nil)
	require.NoError(t, err)
	require.Len(t, out.Result.Errors, 1)
	require.Contains(t, out.Result.Errors[0], ErrMsgQRDecodeFailed)
}

func TestValidateUnsupportedFileType(t *testing.T) {
	eng := newTestEngine(t, &stubDecoder{}, &stubEnricher{}, nil)

	out, err := eng.Validate(context.Background(), Input{
		FileName: "invoice.docx",
		Snapshot: snapshot.New("", []string{invoiceText}),
	}, nil)
	require.NoError(t, err)
	require.Contains(t, out.Result.Errors, ErrMsgUnsupportedFile)
	// text-side work is unaffected
	require.Equal(t, "ebm-standard", out.Result.TemplateName)
}

func TestValidateNoTemplateStillDecodesQR(t *testing.T) {
	dec := &stubDecoder{detections: []qrcode.Detection{{
		PageNumber: 1, Text: "tin:101234567;invoice:INV-1",
	}}}
	eng := newTestEngine(t, dec, &stubEnricher{}, nil)

	out, err := eng.Validate(context.Background(), Input{
		FileName: "other.pdf",
		Snapshot: snapshot.New("", []string{"a plain letter, no fiscal markers"}),
	}, nil)
	require.NoError(t, err)

	res := out.Result
	require.Contains(t, res.Errors, ErrMsgNoTemplate)
	require.Empty(t, res.TemplateName)
	require.Nil(t, out.Extraction)

	tin := comparisonFor(t, res, constants.FieldTIN)
	require.Equal(t, constants.StatusMissing, tin.Status)
	require.Equal(t, "101234567", tin.QRValue)
}

func TestValidateEnrichmentFillsOnlyEmpty(t *testing.T) {
	dec := &stubDecoder{detections: []qrcode.Detection{{
		PageNumber: 1, Text: "https://myrra.rra.gov.rw/receipt?tin=101234567",
	}}}
	enr := &stubEnricher{fill: &qrpayload.Payload{
		TIN:           "999999999", // must not overwrite the QR-native TIN
		InvoiceNumber: "INV-2024/001",
	}}
	eng := newTestEngine(t, dec, enr, nil)

	out, err := eng.Validate(context.Background(), Input{
		FileName: "invoice.pdf",
		Snapshot: snapshot.New("", []string{invoiceText}),
	}, nil)
	require.NoError(t, err)
	require.True(t, enr.called)

	res := out.Result
	tin := comparisonFor(t, res, constants.FieldTIN)
	require.Equal(t, "101234567", tin.QRValue)
	require.Contains(t, tin.Sources, SourceQR)

	inv := comparisonFor(t, res, constants.FieldInvoiceNumber)
	require.Equal(t, constants.StatusMatch, inv.Status)
	require.Contains(t, inv.Sources, SourceEnrichment)
	require.NotContains(t, inv.Sources, SourceQR)
}

func TestValidateAmbiguousDateUsesTemplateFormats(t *testing.T) {
	// 05/12/2024 is day-first per the template's date_formats; the QR side
	// must parse it the same way instead of falling back to month-first.
	dec := &stubDecoder{detections: []qrcode.Detection{{
		PageNumber: 1, Text: "tin:101234567;date:05/12/2024",
	}}}
	eng := newTestEngine(t, dec, &stubEnricher{}, nil)

	out, err := eng.Validate(context.Background(), Input{
		FileName: "invoice.pdf",
		Snapshot: snapshot.New("", []string{"EBM INVOICE\nTIN: 101234567\nDate: 05/12/2024"}),
	}, nil)
	require.NoError(t, err)

	date := comparisonFor(t, out.Result, constants.FieldIssueDate)
	require.Equal(t, constants.StatusMatch, date.Status, date.Details)
	require.Equal(t, "2024-12-05", date.QRValue)
}

func TestValidateZeroEnrichTimeoutStillEnriches(t *testing.T) {
	dec := &stubDecoder{detections: []qrcode.Detection{{
		PageNumber: 1, Text: "https://myrra.rra.gov.rw/receipt?tin=101234567",
	}}}
	enr := &stubEnricher{}
	cfg := &common.Config{Compare: common.CompareConfig{AmountTolerance: 1}}
	eng := newTestEngine(t, dec, enr, cfg)

	_, err := eng.Validate(context.Background(), Input{
		FileName: "invoice.pdf",
		Snapshot: snapshot.New("", []string{invoiceText}),
	}, nil)
	require.NoError(t, err)
	require.True(t, enr.called)
	require.NoError(t, enr.ctxErr, "enrichment context must not be pre-expired")
}

func TestValidateEnrichmentDisabled(t *testing.T) {
	dec := &stubDecoder{detections: []qrcode.Detection{{
		PageNumber: 1, Text: "https://myrra.rra.gov.rw/receipt?tin=101234567",
	}}}
	enr := &stubEnricher{}
	cfg := testConfig()
	cfg.Enrich.Disabled = true
	eng := newTestEngine(t, dec, enr, cfg)

	_, err := eng.Validate(context.Background(), Input{
		FileName: "invoice.pdf",
		Snapshot: snapshot.New("", []string{invoiceText}),
	}, nil)
	require.NoError(t, err)
	require.False(t, enr.called)
}

func TestValidateNonURLPayloadSkipsEnrichment(t *testing.T) {
	dec := &stubDecoder{detections: []qrcode.Detection{{
		PageNumber: 1, Text: "tin:101234567",
	}}}
	enr := &stubEnricher{}
	eng := newTestEngine(t, dec, enr, nil)

	_, err := eng.Validate(context.Background(), Input{
		FileName: "invoice.pdf",
		Snapshot: snapshot.New("", []string{invoiceText}),
	}, nil)
	require.NoError(t, err)
	require.False(t, enr.called)
}

func TestValidateCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := newTestEngine(t, &stubDecoder{}, &stubEnricher{}, nil)

	_, err := eng.Validate(ctx, Input{
		FileName: "invoice.pdf",
		Snapshot: snapshot.New("", []string{invoiceText}),
	}, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestValidateNilSnapshot(t *testing.T) {
	dec := &stubDecoder{detections: []qrcode.Detection{{PageNumber: 1, Text: "tin:101234567"}}}
	eng := newTestEngine(t, dec, &stubEnricher{}, nil)

	out, err := eng.Validate(context.Background(), Input{FileName: "invoice.pdf"}, nil)
	require.NoError(t, err)
	require.Contains(t, out.Result.Warnings, "no text snapshot supplied")
	require.Contains(t, out.Result.Errors, ErrMsgNoTemplate)
}

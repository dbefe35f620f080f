package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ebmtools/invoice-validator/constants"
	"github.com/ebmtools/invoice-validator/internal/common"
	"github.com/ebmtools/invoice-validator/internal/extract"
	"github.com/ebmtools/invoice-validator/internal/normalize"
	"github.com/ebmtools/invoice-validator/internal/qrcode"
	"github.com/ebmtools/invoice-validator/internal/qrpayload"
	"github.com/ebmtools/invoice-validator/internal/snapshot"
	"github.com/ebmtools/invoice-validator/internal/template"
)

// QRDecoder extracts QR detections from PDF bytes.
type QRDecoder interface {
	Decode(ctx context.Context, pdfBytes []byte, opts *qrcode.Options) ([]qrcode.Detection, error)
}

// Enricher fills empty payload fields from an issuer receipt lookup.
type Enricher interface {
	Enrich(ctx context.Context, p *qrpayload.Payload) bool
}

// Input is everything one validation run needs: the original bytes for QR
// decoding and the externally extracted text snapshot.
type Input struct {
	FileName string
	PDF      []byte
	Snapshot *snapshot.Snapshot
}

// Engine orchestrates template matching, field extraction, QR decoding,
// enrichment and comparison. It holds no per-run state; every invocation is
// independent and idempotent apart from the network enrichment.
type Engine struct {
	store          *template.Store
	extractor      *extract.Extractor
	decoder        QRDecoder
	enricher       Enricher
	tolerance      decimal.Decimal
	qrDefaults     *qrcode.Options
	enrichTimeout  time.Duration
	enrichDisabled bool
	logger         *slog.Logger
}

// defaultEnrichTimeout backstops caller-built configs with a zero timeout,
// which would otherwise hand enrichment an already-expired context.
const defaultEnrichTimeout = 8 * time.Second

func NewEngine(store *template.Store, decoder QRDecoder, enricher Enricher, cfg *common.Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = common.LoadConfig()
	}
	enrichTimeout := cfg.Enrich.Timeout
	if enrichTimeout <= 0 {
		enrichTimeout = defaultEnrichTimeout
	}
	return &Engine{
		store:     store,
		extractor: extract.NewExtractor(logger),
		decoder:   decoder,
		enricher:  enricher,
		tolerance: decimal.NewFromFloat(cfg.Compare.AmountTolerance),
		qrDefaults: &qrcode.Options{
			Scales:   cfg.QR.Scales,
			MaxPages: cfg.QR.MaxPages,
		},
		enrichTimeout:  enrichTimeout,
		enrichDisabled: cfg.Enrich.Disabled,
		logger:         logger,
	}
}

// Validate runs one reconciliation. Per-document failures are accumulated on
// the result; the only hard errors are template-store load failures (a
// deployment defect) and caller cancellation.
func (e *Engine) Validate(ctx context.Context, in Input, qrOpts *qrcode.Options) (*Outcome, error) {
	res := &Result{
		ID:           uuid.New(),
		FileName:     in.FileName,
		Comparisons:  []FieldComparison{},
		QRDetections: []qrcode.Detection{},
		Errors:       []string{},
		StartedAt:    time.Now().UTC(),
	}
	out := &Outcome{Result: res}

	snap := in.Snapshot
	if snap == nil {
		snap = snapshot.New("", nil)
		res.Warnings = append(res.Warnings, "no text snapshot supplied")
	}

	tpl := e.matchAndExtract(snap, res, out)
	payload, qrNative := e.decodeAndEnrich(ctx, in, qrOpts, res, parseOptions(tpl))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.QRPayload = payload
	res.Comparisons = e.buildComparisons(tpl, out.Extraction, payload, qrNative)
	summarize(res)
	res.CompletedAt = time.Now().UTC()

	e.logger.Info("validate.done",
		"id", res.ID,
		"file", in.FileName,
		"template", res.TemplateName,
		"comparisons", len(res.Comparisons),
		"errors", len(res.Errors),
		"duration_ms", res.CompletedAt.Sub(res.StartedAt).Milliseconds(),
	)
	return out, nil
}

// matchAndExtract selects a template and extracts text fields. A missing
// template is recorded, not fatal: QR decoding still proceeds.
func (e *Engine) matchAndExtract(snap *snapshot.Snapshot, res *Result, out *Outcome) *template.Template {
	tpl, ok, err := e.store.Match(snap.Content)
	if err != nil {
		// surfaced as a hard failure by Templates() on first use; here it can
		// only mean the store was reset against a broken directory
		res.Errors = append(res.Errors, fmt.Sprintf("template load failed: %v", err))
		return nil
	}
	if !ok {
		e.logger.Warn("validate.template.none", "title", snap.Title)
		res.Errors = append(res.Errors, ErrMsgNoTemplate)
		return nil
	}
	res.TemplateName = tpl.Name
	res.Issuer = tpl.Issuer
	out.Extraction = e.extractor.Extract(tpl, snap)
	for _, name := range e.extractor.MissingRequired(tpl, out.Extraction) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("required field %q not found in text", name))
	}
	return tpl
}

// decodeAndEnrich runs QR extraction, payload parsing and best-effort
// enrichment. qrNative snapshots the payload before enrichment so comparison
// sources can tell QR-native values from looked-up ones.
func (e *Engine) decodeAndEnrich(ctx context.Context, in Input, qrOpts *qrcode.Options, res *Result, parseOpts normalize.Options) (payload, qrNative *qrpayload.Payload) {
	if constants.MapExtToFormat(filepath.Ext(in.FileName)) != constants.PDF {
		res.Errors = append(res.Errors, ErrMsgUnsupportedFile)
		return nil, nil
	}

	opts := qrOptsOrDefault(qrOpts, e.qrDefaults)
	detections, err := e.decoder.Decode(ctx, in.PDF, opts)
	if detections != nil {
		res.QRDetections = detections
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", ErrMsgQRDecodeFailed, err))
		return nil, nil
	}
	if len(detections) == 0 {
		res.Errors = append(res.Errors, ErrMsgNoQRCode)
		return nil, nil
	}

	p, perr := qrpayload.ParseWithOptions(detections[0].Text, parseOpts)
	if perr != nil {
		if errors.Is(perr, qrpayload.ErrNoRecognizedFields) {
			res.Errors = append(res.Errors, ErrMsgPayloadNoFields)
		} else {
			res.Errors = append(res.Errors, fmt.Sprintf("QR payload parse failed: %v", perr))
		}
	}
	native := *p // shallow copy: pointer fields only compared for nil-ness

	if !e.enrichDisabled && e.enricher != nil && qrpayload.IsURL(p.Raw) {
		if ctx.Err() == nil {
			ectx, cancel := context.WithTimeout(ctx, e.enrichTimeout)
			e.enricher.Enrich(ectx, p)
			cancel()
		}
	}
	return p, &native
}

func (e *Engine) buildComparisons(tpl *template.Template, ext extract.Extraction, payload, qrNative *qrpayload.Payload) []FieldComparison {
	covered := make(map[constants.Field]bool)
	comparisons := make([]FieldComparison, 0, len(constants.AllFields))

	if tpl != nil {
		for _, name := range tpl.FieldOrder {
			f := tpl.Fields[name]
			if !f.Compare || covered[f.Canonical] {
				continue
			}
			covered[f.Canonical] = true
			comparisons = append(comparisons, e.compareOne(f.Canonical, payload, qrNative, ext[name]))
		}
	}
	// canonical fields the template has no mapping for, but the QR carries
	for _, field := range constants.AllFields {
		if covered[field] {
			continue
		}
		if _, ok := qrValue(payload, field); ok {
			comparisons = append(comparisons, e.compareOne(field, payload, qrNative, nil))
		}
	}
	return comparisons
}

func (e *Engine) compareOne(field constants.Field, payload, qrNative *qrpayload.Payload, textField *extract.Field) FieldComparison {
	cmp := FieldComparison{Field: field}

	qrVal, qrOK := qrValue(payload, field)
	var textVal any
	textOK := textField.HasValue()
	if textOK {
		textVal = textField.Value
		cmp.PageNumber = textField.PageNumber
	}

	if qrOK {
		cmp.QRValue = asString(qrVal)
		if _, native := qrValue(qrNative, field); native {
			cmp.Sources = append(cmp.Sources, SourceQR)
		} else {
			cmp.Sources = append(cmp.Sources, SourceEnrichment)
		}
	}
	if textOK {
		cmp.TextValue = asString(textVal)
		cmp.Sources = append(cmp.Sources, SourceText)
	}

	switch {
	case !qrOK && !textOK:
		cmp.Status = constants.StatusUnverified
	case qrOK != textOK:
		cmp.Status = constants.StatusMissing
		if qrOK {
			cmp.Details = "only QR value present"
		} else {
			cmp.Details = "only text value present"
		}
	default:
		equal, detail := compareValues(field, e.tolerance, qrVal, textVal)
		if equal {
			cmp.Status = constants.StatusMatch
		} else {
			cmp.Status = constants.StatusMismatch
			cmp.Details = detail
		}
	}
	return cmp
}

// qrValue pulls one canonical field off the payload.
func qrValue(p *qrpayload.Payload, field constants.Field) (any, bool) {
	if p == nil {
		return nil, false
	}
	switch field {
	case constants.FieldInvoiceNumber:
		return p.InvoiceNumber, p.InvoiceNumber != ""
	case constants.FieldTIN:
		return p.TIN, p.TIN != ""
	case constants.FieldBuyerTIN:
		return p.BuyerTIN, p.BuyerTIN != ""
	case constants.FieldIssueDate:
		if p.IssueDate == nil {
			return nil, false
		}
		return *p.IssueDate, true
	case constants.FieldTotalAmount:
		if p.TotalAmount == nil {
			return nil, false
		}
		return *p.TotalAmount, true
	case constants.FieldVATAmount:
		if p.VATAmount == nil {
			return nil, false
		}
		return *p.VATAmount, true
	case constants.FieldCurrency:
		return p.Currency, p.Currency != ""
	}
	return nil, false
}

// parseOptions gives QR payload parsing the matched template's normalization
// options, so an ambiguous date like 05/12/2024 resolves the same way on both
// sides of the comparison.
func parseOptions(tpl *template.Template) normalize.Options {
	if tpl != nil {
		return tpl.Options
	}
	return normalize.DefaultOptions()
}

func qrOptsOrDefault(opts, defaults *qrcode.Options) *qrcode.Options {
	if opts != nil {
		return opts
	}
	return defaults
}

// Package qrcode locates and decodes QR codes embedded in PDF invoices by
// rasterizing pages at increasing scales and trying two independent decoders.
package qrcode

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/gen2brain/go-fitz"
	"github.com/liyue201/goqr"
	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
)

// DefaultScales is the render-scale ladder, cheapest first. Higher scales are
// only tried when a page yields nothing at the lower ones.
var DefaultScales = []float64{1.4, 1.8, 2.2, 2.8, 3.5, 4.2}

// Detection is one successful decode: which page, at which scale, and the raw text.
type Detection struct {
	PageNumber int     `json:"pageNumber"`
	Scale      float64 `json:"scale"`
	Text       string  `json:"text"`
}

// Options tune one extraction run.
type Options struct {
	Scales   []float64
	MaxPages int
	// AllowDuplicates keeps a decoded text already seen on an earlier page.
	// The zero value discards such repeats, so partially filled Options still
	// deduplicate.
	AllowDuplicates bool
}

// DefaultOptions returns the options used when the caller passes nil.
func DefaultOptions() *Options {
	return &Options{Scales: DefaultScales}
}

func (o *Options) withDefaults() *Options {
	if o == nil {
		return DefaultOptions()
	}
	out := *o
	if len(out.Scales) == 0 {
		out.Scales = DefaultScales
	}
	return &out
}

// Decoder extracts QR payloads from PDF bytes.
type Decoder struct {
	logger *slog.Logger
}

func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger}
}

// Decode rasterizes each page at ascending scales and records the first
// successful decode per page. No QR anywhere is an empty result, not an error;
// only unreadable PDF bytes fail. Cancellation is honored between attempts.
func (d *Decoder) Decode(ctx context.Context, pdfBytes []byte, opts *Options) ([]Detection, error) {
	o := opts.withDefaults()

	doc, err := fitz.NewFromMemory(pdfBytes)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if o.MaxPages > 0 && pages > o.MaxPages {
		pages = o.MaxPages
	}

	detections := make([]Detection, 0, 1)
	seen := make(map[string]struct{})
	for page := 0; page < pages; page++ {
		for _, scale := range o.Scales {
			if err := ctx.Err(); err != nil {
				return detections, err
			}
			text, ok := d.decodeAttempt(doc, page, scale)
			if !ok {
				continue
			}
			if !o.AllowDuplicates {
				if _, dup := seen[text]; dup {
					break // same code rendered again on a later page
				}
				seen[text] = struct{}{}
			}
			detections = append(detections, Detection{PageNumber: page + 1, Scale: scale, Text: text})
			break
		}
	}
	return detections, nil
}

// decodeAttempt renders one page at one scale and tries both decoders. The
// bitmap is scoped to this call so peak memory stays one page render.
func (d *Decoder) decodeAttempt(doc *fitz.Document, page int, scale float64) (string, bool) {
	img, err := doc.ImageDPI(page, 72*scale)
	if err != nil {
		d.logger.Debug("qr.render_failed", "page", page+1, "scale", scale, "error", err)
		return "", false
	}
	text, err := DecodeImage(img)
	if err != nil {
		d.logger.Debug("qr.decode_miss", "page", page+1, "scale", scale, "error", err)
		return "", false
	}
	d.logger.Debug("qr.decoded", "page", page+1, "scale", scale, "bytes", len(text))
	return text, true
}

// DecodeImage tries the zxing-style reader first, then the independent goqr
// recognizer on the same bitmap. Decoder panics on malformed bitmaps count as
// a miss for this attempt, never as a run failure.
func DecodeImage(img image.Image) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("decoder panic: %v", r)
		}
	}()

	if bmp, berr := gozxing.NewBinaryBitmapFromImage(img); berr == nil {
		if res, derr := zxqr.NewQRCodeReader().Decode(bmp, nil); derr == nil {
			return res.GetText(), nil
		}
	}

	codes, qerr := goqr.Recognize(img)
	if qerr != nil {
		return "", fmt.Errorf("no qr code: %w", qerr)
	}
	if len(codes) == 0 {
		return "", fmt.Errorf("no qr code in bitmap")
	}
	return string(codes[0].Payload), nil
}

package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ebmtools/invoice-validator/internal/qrpayload"
)

// DefaultRRAHost is the Rwanda Revenue Authority receipt-lookup host that EBM
// QR payloads point at.
const DefaultRRAHost = "myrra.rra.gov.rw"

// RRAResolver fetches the public receipt page and scrapes its label/value
// markup into a payload.
type RRAResolver struct {
	host   string
	client *http.Client
	logger *slog.Logger
}

// NewRRAResolver builds the resolver. A nil client gets a conservative timeout;
// callers usually pass one wired to the configured enrichment timeout.
func NewRRAResolver(client *http.Client, logger *slog.Logger) *RRAResolver {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RRAResolver{host: DefaultRRAHost, client: client, logger: logger}
}

func (r *RRAResolver) Host() string { return r.host }

// Resolve GETs the receipt page and parses its structured markup.
func (r *RRAResolver) Resolve(ctx context.Context, rawURL string) (*qrpayload.Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("receipt lookup returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse receipt page: %w", err)
	}
	r.logger.Debug("enrich.rra.fetched", "url", rawURL, "elapsed_ms", time.Since(start).Milliseconds())

	p := ParseReceiptDocument(doc)
	if p.FieldCount() == 0 {
		return nil, fmt.Errorf("receipt page had no recognizable fields")
	}
	return p, nil
}

// ParseReceiptDocument scrapes label/value pairs out of the receipt page:
// two-cell table rows and dt/dd definition lists.
func ParseReceiptDocument(doc *goquery.Document) *qrpayload.Payload {
	p := &qrpayload.Payload{Additional: make(map[string]string)}

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if cells.Length() < 2 {
			return
		}
		label := strings.TrimSpace(cells.First().Text())
		value := strings.TrimSpace(cells.Eq(1).Text())
		applyLabel(p, label, value)
	})

	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		labels := dl.Find("dt")
		values := dl.Find("dd")
		n := labels.Length()
		if values.Length() < n {
			n = values.Length()
		}
		for i := 0; i < n; i++ {
			applyLabel(p, strings.TrimSpace(labels.Eq(i).Text()), strings.TrimSpace(values.Eq(i).Text()))
		}
	})

	return p
}

// applyLabel maps a human label like "Buyer TIN" or "Total Amount (VAT incl.)"
// to a payload key. Most-specific substrings are checked first.
func applyLabel(p *qrpayload.Payload, label, value string) {
	if label == "" || value == "" {
		return
	}
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "buyer") && strings.Contains(l, "tin"):
		p.Set("buyer_tin", value)
	case strings.Contains(l, "client") && strings.Contains(l, "tin"):
		p.Set("buyer_tin", value)
	case strings.Contains(l, "tin"):
		p.Set("tin", value)
	case strings.Contains(l, "invoice") || strings.Contains(l, "receipt number"):
		p.Set("invoice_number", value)
	case strings.Contains(l, "vat") || strings.Contains(l, "tax"):
		// "Total Amount (VAT incl.)" is a total, "VAT" / "Total VAT" is the tax
		if strings.Contains(l, "incl") {
			p.Set("total_amount", value)
		} else {
			p.Set("vat_amount", value)
		}
	case strings.Contains(l, "total") || strings.Contains(l, "amount"):
		p.Set("total_amount", value)
	case strings.Contains(l, "date"):
		p.Set("issue_date", value)
	case strings.Contains(l, "currency"):
		p.Set("currency", value)
	}
}

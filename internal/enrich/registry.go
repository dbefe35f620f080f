// Package enrich fills QrPayload gaps from issuer receipt-lookup endpoints.
// Enrichment is strictly best-effort: it never overwrites a QR-native value
// and its failures never fail a validation run.
package enrich

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ebmtools/invoice-validator/internal/qrpayload"
)

// Resolver fetches the structured receipt page behind a QR payload URL for
// one specific host.
type Resolver interface {
	Host() string
	Resolve(ctx context.Context, rawURL string) (*qrpayload.Payload, error)
}

// Registry routes payload URLs to resolvers by host.
type Registry struct {
	logger *slog.Logger

	mu     sync.RWMutex
	byHost map[string]Resolver
}

// NewRegistry builds a registry with the default RRA resolver registered.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{logger: logger, byHost: make(map[string]Resolver)}
	r.Register(NewRRAResolver(nil, logger))
	return r
}

// Register adds (or replaces) the resolver for its host.
func (r *Registry) Register(res Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byHost[res.Host()] = res
}

// Enrich fills empty canonical fields of p when its raw text is a URL on a
// registered host. Returns true only when a lookup succeeded and was merged.
func (r *Registry) Enrich(ctx context.Context, p *qrpayload.Payload) bool {
	host, ok := qrpayload.Host(p.Raw)
	if !ok {
		return false
	}
	r.mu.RLock()
	res := r.byHost[host]
	r.mu.RUnlock()
	if res == nil {
		r.logger.Debug("enrich.no_resolver", "host", host)
		return false
	}
	found, err := res.Resolve(ctx, p.Raw)
	if err != nil {
		r.logger.Debug("enrich.lookup_failed", "host", host, "error", err)
		return false
	}
	p.FillFrom(found)
	r.logger.Info("enrich.merged", "host", host, "fields", found.FieldCount())
	return true
}

package collector

import (
	"context"
	"slices"
	"time"

	"github.com/newthinker/buddy/internal/core"
)

// Routed sends each fetch to the first provider that trades the symbol's
// market, so a US-only primary can sit in front of a global fallback.
type Routed struct {
	providers []Provider
}

// Route builds a Routed provider. The first provider names the chain.
func Route(primary Provider, fallbacks ...Provider) *Routed {
	return &Routed{providers: append([]Provider{primary}, fallbacks...)}
}

func (r *Routed) Name() string { return r.providers[0].Name() }

// SupportedMarkets is the union over the chain, in first-seen order.
func (r *Routed) SupportedMarkets() []core.Market {
	var out []core.Market
	for _, p := range r.providers {
		for _, m := range p.SupportedMarkets() {
			if !slices.Contains(out, m) {
				out = append(out, m)
			}
		}
	}
	return out
}

// Init is a no-op; the chained providers are initialized by their owner.
func (r *Routed) Init(cfg Config) error { return nil }

// For returns the provider serving symbol.
func (r *Routed) For(symbol string) (Provider, bool) {
	market := core.DetectMarket(symbol)
	for _, p := range r.providers {
		if slices.Contains(p.SupportedMarkets(), market) {
			return p, true
		}
	}
	return nil, false
}

func (r *Routed) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*Series, error) {
	p, ok := r.For(symbol)
	if !ok {
		return nil, core.Errorf(core.ErrNoMarketData, "no provider covers %s market of %s",
			core.DetectMarket(symbol), symbol)
	}
	return p.FetchHistory(ctx, symbol, start, end)
}

package filter

import (
	"context"
	"errors"
	"fmt"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/events"
	"solana-pool-sniper/internal/services"
)

// RouteImpact requires an aggregator route for the buy size with a price
// impact at or below MaxImpactBps.
type RouteImpact struct {
	Quotes       services.QuoteClient
	Amount       uint64 // quote lamports
	MaxImpactBps int
}

// Name implements Filter.
func (f *RouteImpact) Name() string { return NameRouteGate }

// Check implements Filter.
func (f *RouteImpact) Check(ctx context.Context, pool domain.DetectedPool) domain.FilterResult {
	q, err := f.Quotes.Quote(ctx, services.QuoteRequest{
		InputMint:  pool.QuoteMint,
		OutputMint: pool.BaseMint,
		Amount:     f.Amount,
	})
	if err != nil {
		if errors.Is(err, services.ErrNoRoute) {
			return fail(f.Name(), events.SkipRouteNotFound, "No route found")
		}
		return fail(f.Name(), events.SkipRouteNotFound, fmt.Sprintf("Route check failed: %v", err))
	}

	if q.PriceImpactBps > f.MaxImpactBps {
		return fail(f.Name(), events.SkipImpactGtLimit,
			fmt.Sprintf("Price impact %d bps exceeds limit %d bps", q.PriceImpactBps, f.MaxImpactBps))
	}
	return pass(f.Name(), fmt.Sprintf("Route OK, impact %d bps", q.PriceImpactBps))
}

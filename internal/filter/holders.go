package filter

import (
	"context"
	"fmt"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/events"
	"solana-pool-sniper/internal/services"
)

// HolderConcentration caps the supply share held by the largest account and
// by the five largest accounts.
type HolderConcentration struct {
	Holders services.HoldersService
	Top1Max float64
	Top5Max float64
}

// Name implements Filter.
func (f *HolderConcentration) Name() string { return NameHolderConcentration }

// Check implements Filter.
func (f *HolderConcentration) Check(ctx context.Context, pool domain.DetectedPool) domain.FilterResult {
	c, err := f.Holders.GetHolderConcentration(ctx, pool.BaseMint, 5)
	if err != nil {
		return fail(f.Name(), events.SkipHolderConcentration, fmt.Sprintf("Holder concentration check failed: %v", err))
	}
	if c.Top1 > f.Top1Max {
		return fail(f.Name(), events.SkipHolderConcentration,
			fmt.Sprintf("Top-1 holder concentration %.4f exceeds limit %.4f", c.Top1, f.Top1Max))
	}
	if c.TopN > f.Top5Max {
		return fail(f.Name(), events.SkipHolderConcentration,
			fmt.Sprintf("Top-5 holder concentration %.4f exceeds limit %.4f", c.TopN, f.Top5Max))
	}
	return pass(f.Name(), "Holder concentration check passed")
}

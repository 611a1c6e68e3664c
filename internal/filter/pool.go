package filter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"solana-pool-sniper/internal/amm"
	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/events"
	"solana-pool-sniper/internal/solana"
)

// QuoteVault resolves the account holding a pool's quote reserve. Variants
// without a known layout fall back to the pool id itself.
func QuoteVault(ctx context.Context, chain Chain, pool domain.DetectedPool) (string, error) {
	_, data, err := accountData(ctx, chain, pool.PoolID)
	if err != nil {
		return "", fmt.Errorf("get pool account: %w", err)
	}
	if data == nil {
		return pool.PoolID, nil
	}
	vault, err := amm.QuoteVault(pool.Variant, data)
	if errors.Is(err, amm.ErrUnsupportedVariant) {
		return pool.PoolID, nil
	}
	if err != nil {
		return "", err
	}
	return vault.String(), nil
}

// SOL formats lamports for messages.
func SOL(lamports uint64) string {
	return decimal.NewFromInt(int64(lamports)).Shift(-domain.WSOLDecimals).String()
}

// PoolSize requires the quote reserve to lie within [Min, Max] lamports.
// A zero bound is disabled.
type PoolSize struct {
	Chain Chain
	Min   uint64
	Max   uint64
}

// Name implements Filter.
func (f *PoolSize) Name() string { return NamePoolSize }

// Check implements Filter.
func (f *PoolSize) Check(ctx context.Context, pool domain.DetectedPool) domain.FilterResult {
	vault, err := QuoteVault(ctx, f.Chain, pool)
	if err != nil {
		return fail(f.Name(), events.SkipPoolSize, fmt.Sprintf("Pool size check failed: %v", err))
	}
	bal, err := f.Chain.GetTokenAccountBalance(ctx, vault)
	if err != nil {
		return fail(f.Name(), events.SkipPoolSize, fmt.Sprintf("Pool size check failed: %v", err))
	}
	if bal == nil {
		return fail(f.Name(), events.SkipPoolSize, "Quote vault balance not found")
	}

	size := bal.Amount
	if f.Max != 0 && size > f.Max {
		return fail(f.Name(), events.SkipPoolSize, fmt.Sprintf("Pool size %s > %s", SOL(size), SOL(f.Max)))
	}
	if f.Min != 0 && size < f.Min {
		return fail(f.Name(), events.SkipPoolSize, fmt.Sprintf("Pool size %s < %s", SOL(size), SOL(f.Min)))
	}
	return pass(f.Name(), fmt.Sprintf("Pool size %s SOL", SOL(size)))
}

// PoolAge rejects tokens whose most recent mint activity is older than MaxAge.
type PoolAge struct {
	Chain  Chain
	MaxAge time.Duration
	Now    func() time.Time
}

// Name implements Filter.
func (f *PoolAge) Name() string { return NamePoolAge }

// Check implements Filter.
func (f *PoolAge) Check(ctx context.Context, pool domain.DetectedPool) domain.FilterResult {
	blockTime, err := f.blockTime(ctx, pool.BaseMint)
	if err != nil {
		return fail(f.Name(), events.SkipPoolAge, fmt.Sprintf("Pool age check failed: %v", err))
	}

	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	age := now().Sub(time.Unix(blockTime, 0))
	if age > f.MaxAge {
		return fail(f.Name(), events.SkipPoolAge,
			fmt.Sprintf("Pool created more than %ds ago", int64(f.MaxAge/time.Second)))
	}
	return pass(f.Name(), fmt.Sprintf("Pool age OK: %ds", int64(age/time.Second)))
}

// blockTime returns the block time of the latest signature touching mint,
// falling back to getTransaction when the signature carries none.
func (f *PoolAge) blockTime(ctx context.Context, mint string) (int64, error) {
	sigs, err := f.Chain.GetSignaturesForAddress(ctx, mint, &solana.SignaturesOpts{Limit: 1})
	if err != nil {
		return 0, err
	}
	if len(sigs) == 0 {
		return 0, errors.New("no transactions found for mint")
	}
	sig := sigs[len(sigs)-1]
	if sig.BlockTime != nil && *sig.BlockTime > 0 {
		return *sig.BlockTime, nil
	}

	tx, err := f.Chain.GetTransaction(ctx, sig.Signature)
	if err != nil {
		return 0, err
	}
	if tx == nil || tx.BlockTime == 0 {
		return 0, fmt.Errorf("no block time for %s", sig.Signature)
	}
	return tx.BlockTime, nil
}

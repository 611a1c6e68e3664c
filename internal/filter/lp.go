package filter

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"solana-pool-sniper/internal/amm"
	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/events"
	"solana-pool-sniper/internal/solana"
)

// Locker account layout: discriminator, LP mint, then four u64 fields with
// the unlock time at offset 48.
const (
	LockerAccountSize   = 8 + 32 + 8 + 8 + 8 + 8
	lockerMintOffset    = 8
	lockerEndTimeOffset = 48
)

// DefaultLockerPrograms are the LP locker programs scanned for active locks.
var DefaultLockerPrograms = []string{"LocktDzaV1W2Bm9DeZeiyz4J9zs4fRqNiYqQyracRXw"}

// LPProtection requires the pool's LP tokens to be locked in a known locker
// or fully burned. When Required is false every pool passes.
type LPProtection struct {
	Chain    Chain
	Required bool
	Lockers  []string
	Recorder *events.Recorder
	Now      func() time.Time
}

// Name implements Filter.
func (f *LPProtection) Name() string { return NameLPProtection }

// Check implements Filter.
func (f *LPProtection) Check(ctx context.Context, pool domain.DetectedPool) domain.FilterResult {
	if !f.Required {
		return pass(f.Name(), "LP protection disabled")
	}

	lpMint, err := f.lpMint(ctx, pool)
	if err != nil {
		res := fail(f.Name(), events.SkipNoLock15m, fmt.Sprintf("LP protection check failed: %v", err))
		f.Recorder.Filter(ctx, events.LPCheckFailed, pool, res)
		return res
	}

	locked, err := f.locked(ctx, lpMint)
	if err != nil {
		res := fail(f.Name(), events.SkipNoLock15m, fmt.Sprintf("LP lock lookup failed: %v", err))
		f.Recorder.Filter(ctx, events.LPCheckFailed, pool, res)
		return res
	}
	if locked {
		res := pass(f.Name(), "LP lock protection found")
		f.Recorder.Filter(ctx, events.LPLockOK, pool, res)
		return res
	}

	supply, err := f.Chain.GetTokenSupply(ctx, lpMint)
	if err != nil {
		res := fail(f.Name(), events.SkipNoLock15m, fmt.Sprintf("LP supply lookup failed: %v", err))
		f.Recorder.Filter(ctx, events.LPCheckFailed, pool, res)
		return res
	}
	if supply != nil && supply.Amount == 0 {
		res := pass(f.Name(), "LP burn protection found (100% burned)")
		f.Recorder.Filter(ctx, events.LPBurnOK, pool, res)
		return res
	}
	return fail(f.Name(), events.SkipNoLock15m, "No LP protection found")
}

func (f *LPProtection) lpMint(ctx context.Context, pool domain.DetectedPool) (string, error) {
	if pool.LPMint != "" {
		return pool.LPMint, nil
	}
	_, data, err := accountData(ctx, f.Chain, pool.PoolID)
	if err != nil {
		return "", err
	}
	if data == nil {
		return "", fmt.Errorf("pool account %s not found", pool.PoolID)
	}
	mint, err := amm.LPMint(pool.Variant, data)
	if err != nil {
		return "", err
	}
	return mint.String(), nil
}

// locked reports whether any locker holds lpMint with an unlock time in the future.
func (f *LPProtection) locked(ctx context.Context, lpMint string) (bool, error) {
	lockers := f.Lockers
	if lockers == nil {
		lockers = DefaultLockerPrograms
	}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	unix := uint64(now().Unix())

	seen := make(map[string]bool, len(lockers))
	for _, program := range lockers {
		if seen[program] {
			continue
		}
		seen[program] = true

		accounts, err := f.Chain.GetProgramAccounts(ctx, program, solana.ProgramAccountsFilter{
			DataSize:     LockerAccountSize,
			MemcmpOffset: lockerMintOffset,
			MemcmpBytes:  lpMint,
		})
		if err != nil {
			return false, fmt.Errorf("scan locker %s: %w", program, err)
		}
		for _, acc := range accounts {
			data, err := acc.Account.Bytes()
			if err != nil || len(data) < lockerEndTimeOffset+8 {
				continue
			}
			if binary.LittleEndian.Uint64(data[lockerEndTimeOffset:]) > unix {
				return true, nil
			}
		}
	}
	return false, nil
}

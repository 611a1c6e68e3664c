package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/storage"
)

func createTestPosition(id string, opened time.Time) *domain.TradingPosition {
	return &domain.TradingPosition{
		ID: id,
		Pool: domain.DetectedPool{
			Variant:    domain.VariantRaydium,
			PoolID:     "pool-" + id,
			BaseMint:   "mint-" + id,
			QuoteMint:  domain.WSOLMint,
			LPMint:     "lp-" + id,
			Signature:  "sig-" + id,
			Slot:       250_000_000,
			DetectedAt: opened.Add(-time.Second),
		},
		BuyTxID:     "buy-" + id,
		BuyPrice:    12_345,
		QuoteAmount: 100_000_000,
		TokenAmount: 8_100_000_000,
		OpenedAt:    opened,
		Status:      domain.StatusBuying,
	}
}

func TestPositionStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)

	opened := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := createTestPosition("pos-1", opened)
	require.NoError(t, store.Insert(ctx, p))

	got, err := store.GetByID(ctx, "pos-1")
	require.NoError(t, err)
	assert.Equal(t, domain.VariantRaydium, got.Pool.Variant)
	assert.Equal(t, "lp-pos-1", got.Pool.LPMint)
	assert.Equal(t, uint64(8_100_000_000), got.TokenAmount)
	assert.Equal(t, domain.StatusBuying, got.Status)
	assert.True(t, got.OpenedAt.Equal(opened))
	assert.True(t, got.ClosedAt.IsZero())

	err = store.Insert(ctx, p)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestPositionStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)

	_, err := store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.Update(ctx, createTestPosition("missing", time.Now()))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPositionStore_UpdateJournalsTransitions(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)

	p := createTestPosition("pos-2", time.Now().UTC())
	require.NoError(t, store.Insert(ctx, p))

	require.NoError(t, p.Advance(domain.StatusMonitoring))
	require.NoError(t, store.Update(ctx, p))

	require.NoError(t, p.Advance(domain.StatusSelling))
	require.NoError(t, store.Update(ctx, p))

	p.SellTxID = "sell-pos-2"
	p.SellPrice = 150_000_000
	require.NoError(t, p.Advance(domain.StatusSold))
	require.NoError(t, store.Update(ctx, p))

	got, err := store.GetByID(ctx, "pos-2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSold, got.Status)
	assert.Equal(t, uint64(150_000_000), got.SellPrice)
	assert.False(t, got.ClosedAt.IsZero())

	transitions, err := store.Transitions(ctx, "pos-2")
	require.NoError(t, err)
	assert.Equal(t, []domain.PositionStatus{
		domain.StatusBuying, domain.StatusMonitoring, domain.StatusSelling, domain.StatusSold,
	}, transitions)

	// terminal positions cannot be rewritten
	p.Status = domain.StatusMonitoring
	assert.ErrorIs(t, store.Update(ctx, p), storage.ErrInvalidInput)
}

func TestPositionStore_GetOpen(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)

	base := time.Now().UTC().Truncate(time.Second)
	late := createTestPosition("late", base.Add(time.Minute))
	early := createTestPosition("early", base)
	gone := createTestPosition("gone", base.Add(30*time.Second))
	gone.Status = domain.StatusAbandoned

	for _, p := range []*domain.TradingPosition{late, early, gone} {
		require.NoError(t, store.Insert(ctx, p))
	}

	open, err := store.GetOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "early", open[0].ID)
	assert.Equal(t, "late", open[1].ID)
}

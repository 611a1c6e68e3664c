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

func TestDecisionStore_InsertAndQuery(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDecisionStore(pool)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []*domain.DecisionEvent{
		{ID: "e1", Code: "DETECTED_POOL", Time: base, Dex: "raydium", PoolID: "poolA", Mint: "mintA"},
		{ID: "e2", Code: "FILTER_FAIL", Time: base.Add(time.Second), PoolID: "poolA", Filter: "Burn",
			Reason: "Creator did not burn LP", Duration: 1500 * time.Microsecond},
		{ID: "e3", Code: "POOL_REJECTED", Time: base.Add(2 * time.Second), PoolID: "poolA",
			FailedFilters: []string{"Burn", "Mutable"}},
		{ID: "e4", Code: "DETECTED_POOL", Time: base.Add(time.Hour), PoolID: "poolB"},
	}
	for _, e := range events {
		require.NoError(t, store.Insert(ctx, e))
	}

	byPool, err := store.GetByPool(ctx, "poolA")
	require.NoError(t, err)
	require.Len(t, byPool, 3)
	assert.Equal(t, "e1", byPool[0].ID)
	assert.Equal(t, "Burn", byPool[1].Filter)
	assert.Equal(t, 1500*time.Microsecond, byPool[1].Duration)
	assert.Equal(t, []string{"Burn", "Mutable"}, byPool[2].FailedFilters)

	detected, err := store.GetByCode(ctx, "DETECTED_POOL", base, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, detected, 1)
	assert.Equal(t, "poolA", detected[0].PoolID)
}

func TestDecisionStore_Duplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDecisionStore(pool)

	e := &domain.DecisionEvent{ID: "dup", Code: "BUY_SUCCESS", Time: time.Now().UTC()}
	require.NoError(t, store.Insert(ctx, e))
	assert.ErrorIs(t, store.Insert(ctx, e), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.Insert(ctx, &domain.DecisionEvent{ID: "x"}), storage.ErrInvalidInput)
}

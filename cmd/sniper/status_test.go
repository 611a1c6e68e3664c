package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-pool-sniper/internal/config"
	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/orchestrator"
)

type fixedStats orchestrator.Stats

func (s fixedStats) Stats() orchestrator.Stats { return orchestrator.Stats(s) }

type fixedPositions []domain.TradingPosition

func (p fixedPositions) Open() []domain.TradingPosition { return p }

func TestStatusHandler(t *testing.T) {
	cfg := &config.Config{
		TransactionExecutor: config.ExecutorJito,
		EnabledDexes:        []domain.DexVariant{domain.VariantRaydium, domain.VariantPumpSwap},
	}
	opened := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	positions := fixedPositions{{
		ID:          "pos-1",
		Pool:        domain.DetectedPool{Variant: domain.VariantRaydium, PoolID: "pool1", BaseMint: "mint1"},
		BuyTxID:     "sig1",
		QuoteAmount: 100_000_000,
		TokenAmount: 42,
		OpenedAt:    opened,
		Status:      domain.StatusMonitoring,
	}}

	h := newStatusHandler(time.Now().Add(-time.Minute), cfg, fixedStats{Admitted: 5, Accepted: 2, Bought: 1}, positions)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, "jito", resp.Executor)
	assert.Equal(t, []string{"raydium", "pumpswap"}, resp.Dexes)
	assert.Equal(t, orchestrator.Stats{Admitted: 5, Accepted: 2, Bought: 1}, resp.Stats)
	require.Len(t, resp.Positions, 1)
	assert.Equal(t, "mint1", resp.Positions[0].Mint)
	assert.Equal(t, "0.1", resp.Positions[0].QuoteAmount)
	assert.Equal(t, "monitoring", resp.Positions[0].Status)
	assert.True(t, opened.Equal(resp.Positions[0].OpenedAt))
}

func TestStatusHandler_NoPositions(t *testing.T) {
	h := newStatusHandler(time.Now(), &config.Config{}, fixedStats{}, fixedPositions(nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Contains(t, rec.Body.String(), `"positions":[]`)
}

package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-pool-sniper/internal/domain"
)

func TestJupiterClient_Quote(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/v6/quote", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, domain.WSOLMint, q.Get("inputMint"))
		assert.Equal(t, "mintB", q.Get("outputMint"))
		assert.Equal(t, "100000000", q.Get("amount"))
		assert.Equal(t, "50", q.Get("slippageBps"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"inAmount":"100000000","outAmount":"123456","priceImpactPct":"2.345","routePlan":[{},{}]}`))
	}))
	defer server.Close()

	c := NewJupiterClient(server.URL)
	req := QuoteRequest{InputMint: domain.WSOLMint, OutputMint: "mintB", Amount: 100_000_000}

	q, err := c.Quote(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000_000), q.InAmount)
	assert.Equal(t, uint64(123456), q.OutAmount)
	assert.Equal(t, 235, q.PriceImpactBps)
	assert.Equal(t, 2, q.Hops)

	_, err = c.Quote(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "second quote must be served from cache")
}

func TestJupiterClient_CacheExpires(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"outAmount":"1","priceImpactPct":"0"}`))
	}))
	defer server.Close()

	c := NewJupiterClient(server.URL, WithQuoteTTL(time.Millisecond))
	req := QuoteRequest{InputMint: "a", OutputMint: "b", Amount: 1}

	_, err := c.Quote(context.Background(), req)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = c.Quote(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestJupiterClient_NoRoute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"Could not find any route","errorCode":"COULD_NOT_FIND_ANY_ROUTE"}`))
	}))
	defer server.Close()

	c := NewJupiterClient(server.URL)
	_, err := c.Quote(context.Background(), QuoteRequest{InputMint: "a", OutputMint: "b", Amount: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoRoute))
}

func TestJupiterClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	c := NewJupiterClient(server.URL)
	_, err := c.Quote(context.Background(), QuoteRequest{InputMint: "a", OutputMint: "b", Amount: 1})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoRoute))
}

func TestImpactBps(t *testing.T) {
	assert.Equal(t, 0, ImpactBps(0))
	assert.Equal(t, 500, ImpactBps(5))
	assert.Equal(t, 12, ImpactBps(0.1249))
}

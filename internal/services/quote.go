// Package services wraps the off-chain and on-chain lookups the filters need:
// Jupiter quotes, Metaplex metadata and holder concentration.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"solana-pool-sniper/internal/cache"
)

// Jupiter defaults.
const (
	DefaultJupiterURL     = "https://quote-api.jup.ag"
	DefaultQuoteTTL       = 7 * time.Second
	DefaultQuoteSlippage  = 50
	DefaultRequestTimeout = 10 * time.Second
)

// ErrNoRoute is returned when the aggregator has no route for a pair.
var ErrNoRoute = errors.New("no route found")

// QuoteRequest identifies a swap to price.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64
	SlippageBps int
}

func (r QuoteRequest) key() string {
	return r.InputMint + "-" + r.OutputMint + "-" + strconv.FormatUint(r.Amount, 10)
}

// Quote is a priced route.
type Quote struct {
	InAmount       uint64
	OutAmount      uint64
	PriceImpactPct float64
	PriceImpactBps int
	Hops           int
}

// QuoteClient prices swaps against an aggregator.
type QuoteClient interface {
	Quote(ctx context.Context, req QuoteRequest) (*Quote, error)
}

// JupiterClient implements QuoteClient against the Jupiter v6 quote API.
type JupiterClient struct {
	baseURL string
	client  *http.Client
	cache   *cache.TTL[*Quote]
	logger  *log.Logger
}

// JupiterOption configures JupiterClient.
type JupiterOption func(*JupiterClient)

// WithJupiterHTTPClient sets a custom http.Client.
func WithJupiterHTTPClient(client *http.Client) JupiterOption {
	return func(c *JupiterClient) {
		c.client = client
	}
}

// WithQuoteTTL overrides the response cache lifetime.
func WithQuoteTTL(ttl time.Duration) JupiterOption {
	return func(c *JupiterClient) {
		c.cache = cache.NewTTL[*Quote](ttl)
	}
}

// WithJupiterLogger sets the diagnostics logger.
func WithJupiterLogger(logger *log.Logger) JupiterOption {
	return func(c *JupiterClient) {
		c.logger = logger
	}
}

// NewJupiterClient creates a quote client. An empty baseURL selects the public API.
func NewJupiterClient(baseURL string, opts ...JupiterOption) *JupiterClient {
	if baseURL == "" {
		baseURL = DefaultJupiterURL
	}
	c := &JupiterClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultRequestTimeout},
		cache:   cache.NewTTL[*Quote](DefaultQuoteTTL),
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type quoteResponse struct {
	InAmount       string            `json:"inAmount"`
	OutAmount      string            `json:"outAmount"`
	PriceImpactPct string            `json:"priceImpactPct"`
	RoutePlan      []json.RawMessage `json:"routePlan"`
	Error          string            `json:"error"`
	ErrorCode      string            `json:"errorCode"`
}

// Quote fetches a quote, serving repeated requests from a short-lived cache.
// A missing route is reported as ErrNoRoute.
func (c *JupiterClient) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if q, ok := c.cache.Get(req.key()); ok {
		return q, nil
	}

	slippage := req.SlippageBps
	if slippage == 0 {
		slippage = DefaultQuoteSlippage
	}
	params := url.Values{}
	params.Set("inputMint", req.InputMint)
	params.Set("outputMint", req.OutputMint)
	params.Set("amount", strconv.FormatUint(req.Amount, 10))
	params.Set("slippageBps", strconv.Itoa(slippage))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v6/quote?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("jupiter request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var raw quoteResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("jupiter status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("unmarshal quote: %w", err)
	}
	if raw.Error != "" {
		c.logger.Printf("[jupiter] no route %s -> %s: %s %s", req.InputMint, req.OutputMint, raw.ErrorCode, raw.Error)
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, raw.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jupiter status %d: %s", resp.StatusCode, string(body))
	}

	q, err := raw.toQuote()
	if err != nil {
		return nil, err
	}
	c.cache.Set(req.key(), q)
	return q, nil
}

func (r quoteResponse) toQuote() (*Quote, error) {
	if r.OutAmount == "" {
		return nil, ErrNoRoute
	}
	out, err := strconv.ParseUint(r.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse outAmount %q: %w", r.OutAmount, err)
	}
	var in uint64
	if r.InAmount != "" {
		if in, err = strconv.ParseUint(r.InAmount, 10, 64); err != nil {
			return nil, fmt.Errorf("parse inAmount %q: %w", r.InAmount, err)
		}
	}
	var pct float64
	if r.PriceImpactPct != "" {
		if pct, err = strconv.ParseFloat(r.PriceImpactPct, 64); err != nil {
			return nil, fmt.Errorf("parse priceImpactPct %q: %w", r.PriceImpactPct, err)
		}
	}
	return &Quote{
		InAmount:       in,
		OutAmount:      out,
		PriceImpactPct: pct,
		PriceImpactBps: ImpactBps(pct),
		Hops:           len(r.RoutePlan),
	}, nil
}

// ImpactBps converts a price impact percentage to rounded basis points.
func ImpactBps(pct float64) int {
	return int(math.Round(pct * 100))
}

var _ QuoteClient = (*JupiterClient)(nil)

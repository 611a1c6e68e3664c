package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"solana-pool-sniper/internal/config"
	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/orchestrator"
)

type statsSource interface {
	Stats() orchestrator.Stats
}

type positionSource interface {
	Open() []domain.TradingPosition
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status    string             `json:"status"`
	Uptime    string             `json:"uptime"`
	Started   time.Time          `json:"started"`
	Executor  string             `json:"executor"`
	Dexes     []string           `json:"dexes"`
	Stats     orchestrator.Stats `json:"stats"`
	Positions []PositionSummary  `json:"positions"`
}

// PositionSummary is one open position in the status response.
type PositionSummary struct {
	ID          string    `json:"id"`
	Dex         string    `json:"dex"`
	Pool        string    `json:"pool"`
	Mint        string    `json:"mint"`
	Status      string    `json:"status"`
	QuoteAmount string    `json:"quote_amount_sol"`
	TokenAmount uint64    `json:"token_amount"`
	BuyTxID     string    `json:"buy_tx"`
	OpenedAt    time.Time `json:"opened_at"`
}

// newStatusHandler returns bot status as JSON.
func newStatusHandler(started time.Time, cfg *config.Config, bot statsSource, positions positionSource) http.HandlerFunc {
	dexes := make([]string, len(cfg.EnabledDexes))
	for i, v := range cfg.EnabledDexes {
		dexes[i] = v.String()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Status:    "running",
			Uptime:    time.Since(started).Round(time.Second).String(),
			Started:   started,
			Executor:  cfg.TransactionExecutor,
			Dexes:     dexes,
			Stats:     bot.Stats(),
			Positions: []PositionSummary{},
		}
		for _, p := range positions.Open() {
			resp.Positions = append(resp.Positions, PositionSummary{
				ID:          p.ID,
				Dex:         p.Pool.Variant.String(),
				Pool:        p.Pool.PoolID,
				Mint:        p.Pool.BaseMint,
				Status:      p.Status.String(),
				QuoteAmount: config.FormatSOL(p.QuoteAmount),
				TokenAmount: p.TokenAmount,
				BuyTxID:     p.BuyTxID,
				OpenedAt:    p.OpenedAt,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// startHTTPServer serves health, metrics and status until the process exits.
func startHTTPServer(addr string, status http.Handler, logger *log.Logger) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.Handle("/status", status)

	logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP server error: %v", err)
	}
}

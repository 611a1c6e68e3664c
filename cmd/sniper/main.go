package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solana-pool-sniper/internal/config"
	"solana-pool-sniper/internal/decoder"
	"solana-pool-sniper/internal/dedup"
	"solana-pool-sniper/internal/events"
	"solana-pool-sniper/internal/executor"
	"solana-pool-sniper/internal/filter"
	"solana-pool-sniper/internal/listener"
	"solana-pool-sniper/internal/orchestrator"
	"solana-pool-sniper/internal/queue"
	"solana-pool-sniper/internal/services"
	"solana-pool-sniper/internal/solana"
	"solana-pool-sniper/internal/storage"
	chstore "solana-pool-sniper/internal/storage/clickhouse"
	"solana-pool-sniper/internal/storage/memory"
	"solana-pool-sniper/internal/storage/migrations"
	pgstore "solana-pool-sniper/internal/storage/postgres"
	"solana-pool-sniper/internal/trader"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "[sniper] ", log.LstdFlags|log.Lshortfile)
	// Components tag their own lines.
	diag := log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds)

	envFile := os.Getenv("SNIPER_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	cfg, err := config.Load(envFile, os.Args[1:])
	if err != nil {
		logger.Fatalf("Invalid configuration:\n%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal main goroutine completion
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(orchestrator.DefaultShutdownGrace + 15*time.Second):
			logger.Println("Graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = run(ctx, cfg, logger, diag)

	// Signal completion to shutdown handler
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// run wires every stage from cfg and blocks until ctx ends.
func run(ctx context.Context, cfg *config.Config, logger, diag *log.Logger) error {
	wallet, err := solana.KeypairFromBase58(cfg.PrivateKey)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}
	logger.Printf("Wallet %s, buy amount %s SOL, executor %s", wallet.PublicKey(), config.FormatSOL(cfg.BuyAmount), cfg.TransactionExecutor)

	rpc := solana.NewHTTPClient(cfg.RPCEndpoint)

	// Journals. Memory unless a database is configured.
	var positions storage.PositionStore = memory.NewPositionStore()
	var sinks []events.Sink

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.Postgres(ctx, pool.Pool, diag); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		positions = pgstore.NewPositionStore(pool)
		sinks = append(sinks, pgstore.NewDecisionStore(pool))
		logger.Println("Journaling positions and decisions to PostgreSQL")
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := chstore.Open(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return fmt.Errorf("connect to clickhouse: %w", err)
		}
		defer conn.Close()

		if err := migrations.Clickhouse(ctx, conn.Conn, diag); err != nil {
			return fmt.Errorf("migrate clickhouse: %w", err)
		}

		sinks = append(sinks, chstore.NewDecisionStore(conn))
		logger.Println("Streaming decisions to ClickHouse")
	}

	recorder := events.NewRecorder(os.Stdout, events.Options{Sinks: sinks, Logger: diag})

	// Dedup state, shared through Redis when configured.
	dedupOpts := dedup.Options{
		TTL:           cfg.DedupTTL,
		DebounceDelay: cfg.DebounceDelay,
		Recorder:      recorder,
		Logger:        diag,
	}
	if cfg.RedisURL != "" {
		client, err := dedup.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer client.Close()

		dedupOpts.Signatures = dedup.NewRedisSeenSet(client, "sniper:sig:", cfg.DedupTTL)
		dedupOpts.Pools = dedup.NewRedisSeenSet(client, "sniper:pool:", cfg.DedupTTL)
		logger.Println("Sharing dedup state through Redis")
	}
	stage := dedup.New(dedupOpts)

	calls := queue.NewCallQueue(queue.CallQueueOptions{Spacing: cfg.RPCSpacing, Logger: diag})
	admission := queue.NewAdmissionQueue(queue.AdmissionOptions{Capacity: cfg.MaxTokensAtTheTime, Logger: diag})

	// Filters
	metadata := services.NewMetaplexService(rpc, services.MetaplexOptions{Logger: diag})
	pipeline := filter.NewPipeline(
		filter.Standard(filter.Deps{
			Chain:    rpc,
			Quotes:   services.NewJupiterClient(cfg.JupiterURL, services.WithJupiterLogger(diag)),
			Metadata: metadata,
			Holders:  services.NewLargestAccountsService(rpc, services.DefaultHoldersTTL),
			Recorder: recorder,
		}, filter.Thresholds{
			BuyAmount:           cfg.BuyAmount,
			MaxPriceImpactBps:   cfg.MaxPriceImpactBps,
			MinSocialLinks:      cfg.MinSocialLinks,
			MinPoolSize:         cfg.MinPoolSize,
			MaxPoolSize:         cfg.MaxPoolSize,
			PoolMaxAge:          cfg.PoolMaxAge,
			HoldersTop1MaxRatio: cfg.HoldersTop1MaxRatio,
			HoldersTop5MaxRatio: cfg.HoldersTop5MaxRatio,
			RequireLPProtection: cfg.RequireLPProtection,
		}),
		filter.Options{
			Rounds:   cfg.ConsecutiveFilterMatches,
			Interval: cfg.FilterCheckInterval,
			Metadata: metadata,
			Recorder: recorder,
			Logger:   diag,
		},
	)

	// Trading
	var submitter executor.Submitter
	switch cfg.TransactionExecutor {
	case config.ExecutorJito:
		submitter = executor.NewBundle(rpc, wallet, executor.BundleOptions{
			URL:    cfg.JitoURL,
			Tip:    cfg.CustomFee,
			Logger: diag,
		})
	default:
		submitter = executor.NewDirect(rpc, wallet, executor.DirectOptions{Logger: diag})
	}

	engine := trader.NewEngine(trader.Config{
		QuoteAmount:     cfg.BuyAmount,
		MinPoolSize:     cfg.MinPoolSize,
		MaxPoolSize:     cfg.MaxPoolSize,
		AutoBuyDelay:    cfg.AutoBuyDelay,
		MaxBuyRetries:   cfg.MaxBuyRetries,
		BuySlippageBps:  uint64(cfg.BuySlippageBps),
		AutoSell:        cfg.AutoSell,
		AutoSellDelay:   cfg.AutoSellDelay,
		MaxSellRetries:  cfg.MaxSellRetries,
		SellSlippageBps: uint64(cfg.SellSlippageBps),
		UnitLimit:       cfg.UnitLimit,
		UnitPrice:       cfg.UnitPrice,
		Exit: trader.ExitRules{
			TakeProfit:         cfg.TakeProfit,
			StopLoss:           cfg.StopLoss,
			Trailing:           cfg.TrailingStopLoss,
			SkipIfLostMoreThan: cfg.SkipSellingIfLostMoreThan,
		},
		PriceCheckInterval: cfg.PriceCheckInterval,
		PriceCheckDuration: cfg.PriceCheckDuration,
	}, trader.Options{
		Chain:     rpc,
		Submitter: submitter,
		Wallet:    wallet.PublicKey(),
		Calls:     calls,
		Positions: positions,
		Recorder:  recorder,
		Logger:    diag,
	})

	// Listeners. One WebSocket connection each: some providers merge identical
	// subscriptions on a shared connection.
	var sources []orchestrator.Source
	for _, v := range cfg.EnabledDexes {
		vc, ok := decoder.ConfigFor(v)
		if !ok {
			return fmt.Errorf("no decoder for %s", v)
		}
		ws, err := solana.NewWSClient(ctx, cfg.WSEndpoint, nil)
		if err != nil {
			return fmt.Errorf("create websocket client for %s: %w", v, err)
		}
		defer ws.Close()

		sources = append(sources, listener.New(listener.Options{
			Source:  listener.NewChainSource(ws, rpc),
			Decoder: decoder.New(vc),
			Calls:   calls,
			Seen:    stage,
			Backfill: listener.BackfillOptions{
				Disabled: cfg.BackfillSlots == 0,
				Slots:    cfg.BackfillSlots,
			},
			Recorder: recorder,
			Logger:   diag,
		}))
		logger.Printf("Listening for %s pools on %s", v, vc.ProgramID)
	}

	bot, err := orchestrator.New(orchestrator.Options{
		Sources:       sources,
		Dedup:         stage,
		Admission:     admission,
		Calls:         calls,
		Screener:      pipeline,
		Trader:        engine,
		FilterTimeout: cfg.FilterCheckDuration,
		Recorder:      recorder,
		Logger:        diag,
	})
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		status := newStatusHandler(time.Now(), cfg, bot, engine)
		go startHTTPServer(cfg.MetricsAddr, status, logger)
	}

	logger.Printf("Filters: %v", pipeline.Filters())
	err = bot.Run(ctx)

	if open := engine.Open(); len(open) > 0 {
		logger.Printf("%d positions still open at shutdown", len(open))
		for _, p := range open {
			logger.Printf("  %s %s status=%s tokens=%d", p.ID, p.Pool.BaseMint, p.Status, p.TokenAmount)
		}
	}
	return err
}

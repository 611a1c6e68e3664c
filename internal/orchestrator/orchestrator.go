// Package orchestrator wires the sniper stages together and owns their
// lifecycle.
// Flow: listeners → dedup → admission → filters → buy → monitor/sell
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"solana-pool-sniper/internal/dedup"
	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/events"
	"solana-pool-sniper/internal/filter"
	"solana-pool-sniper/internal/queue"
	"solana-pool-sniper/internal/trader"
)

// Defaults for Options.
const (
	DefaultFilterTimeout = 50 * time.Second
	DefaultShutdownGrace = 30 * time.Second
	defaultRawBuffer     = 256
)

// Source produces detected pools until its context ends.
type Source interface {
	Run(ctx context.Context, out chan<- domain.DetectedPool) error
	Variant() domain.DexVariant
}

// Screener decides whether a pool may be bought.
type Screener interface {
	CheckConsecutive(ctx context.Context, pool domain.DetectedPool) filter.Report
}

// Trader buys pools and manages the resulting positions.
type Trader interface {
	Buy(ctx context.Context, pool domain.DetectedPool) trader.TradingResult
	Manage(ctx context.Context, pos *domain.TradingPosition) error
}

// Options for creating a Bot. Every stage is required except Calls.
type Options struct {
	Sources   []Source
	Dedup     *dedup.Stage
	Admission *queue.AdmissionQueue
	// Calls is closed last so in-flight work can finish its RPC calls.
	Calls    *queue.CallQueue
	Screener Screener
	Trader   Trader

	// FilterTimeout bounds the consecutive filter check for one pool.
	FilterTimeout time.Duration
	// ShutdownGrace is how long running pools may keep going after Run's
	// context ends.
	ShutdownGrace time.Duration

	Recorder *events.Recorder
	Logger   *log.Logger
}

// Stats counts pools per stage since the bot started.
type Stats struct {
	Admitted int64 `json:"admitted"`
	Accepted int64 `json:"accepted"`
	Bought   int64 `json:"bought"`
	Closed   int64 `json:"closed"`
}

// Bot runs the detect → trade pipeline.
type Bot struct {
	sources       []Source
	dedup         *dedup.Stage
	admission     *queue.AdmissionQueue
	calls         *queue.CallQueue
	screener      Screener
	trader        Trader
	filterTimeout time.Duration
	grace         time.Duration
	recorder      *events.Recorder
	logger        *log.Logger

	admitted atomic.Int64
	accepted atomic.Int64
	bought   atomic.Int64
	closed   atomic.Int64
}

// New creates a Bot.
func New(opts Options) (*Bot, error) {
	switch {
	case len(opts.Sources) == 0:
		return nil, errors.New("orchestrator: no sources")
	case opts.Dedup == nil:
		return nil, errors.New("orchestrator: dedup stage is required")
	case opts.Admission == nil:
		return nil, errors.New("orchestrator: admission queue is required")
	case opts.Screener == nil:
		return nil, errors.New("orchestrator: screener is required")
	case opts.Trader == nil:
		return nil, errors.New("orchestrator: trader is required")
	}
	if opts.FilterTimeout <= 0 {
		opts.FilterTimeout = DefaultFilterTimeout
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = DefaultShutdownGrace
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Bot{
		sources:       opts.Sources,
		dedup:         opts.Dedup,
		admission:     opts.Admission,
		calls:         opts.Calls,
		screener:      opts.Screener,
		trader:        opts.Trader,
		filterTimeout: opts.FilterTimeout,
		grace:         opts.ShutdownGrace,
		recorder:      opts.Recorder,
		logger:        opts.Logger,
	}, nil
}

// Stats returns a snapshot of the stage counters.
func (b *Bot) Stats() Stats {
	return Stats{
		Admitted: b.admitted.Load(),
		Accepted: b.accepted.Load(),
		Bought:   b.bought.Load(),
		Closed:   b.closed.Load(),
	}
}

// Run starts every stage and blocks until ctx ends or a source fails. It
// then shuts down in order:
//  1. cancel the sources and the dedup loop
//  2. close dedup so no debounce timer fires
//  3. close admission with the grace period, failing queued pools
//  4. cancel pools still running and wait for them
//  5. close the call queue
func (b *Bot) Run(ctx context.Context) error {
	// Pool work outlives ctx by up to the grace period.
	work, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	raw := make(chan domain.DetectedPool, defaultRawBuffer)
	var tasks sync.WaitGroup

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range b.sources {
		src := src
		g.Go(func() error {
			if err := src.Run(gctx, raw); err != nil && gctx.Err() == nil {
				return fmt.Errorf("%s listener: %w", src.Variant(), err)
			}
			return nil
		})
	}
	g.Go(func() error {
		if err := b.dedup.Run(gctx, raw); err != nil && gctx.Err() == nil {
			return fmt.Errorf("dedup: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		out := b.dedup.Output()
		for {
			select {
			case <-gctx.Done():
				return nil
			case pool := <-out:
				tasks.Add(1)
				go func() {
					defer tasks.Done()
					b.admit(work, pool)
				}()
			}
		}
	})

	b.logger.Printf("[bot] started with %d sources", len(b.sources))
	err := g.Wait()

	b.logger.Printf("[bot] shutting down")
	b.dedup.Close()
	b.admission.Close(b.grace)
	cancelWork()
	tasks.Wait()
	if b.calls != nil {
		b.calls.Close()
	}

	s := b.Stats()
	b.logger.Printf("[bot] stopped: admitted=%d accepted=%d bought=%d closed=%d", s.Admitted, s.Accepted, s.Bought, s.Closed)
	return err
}

func (b *Bot) admit(ctx context.Context, pool domain.DetectedPool) {
	err := b.admission.Submit(ctx, pool, b.process)
	switch {
	case err == nil:
	case errors.Is(err, queue.ErrAdmissionClosed):
		b.logger.Printf("[bot] %s dropped: %v", pool.BaseMint, err)
	default:
		b.logger.Printf("[bot] %s failed: %v", pool.BaseMint, err)
	}
}

// process is the admission task for one pool.
func (b *Bot) process(ctx context.Context, pool domain.DetectedPool) error {
	b.admitted.Add(1)
	start := time.Now()
	b.recorder.Processing(ctx, pool, 0)
	defer func() {
		b.recorder.Processing(context.WithoutCancel(ctx), pool, time.Since(start))
	}()

	fctx, cancel := context.WithTimeout(ctx, b.filterTimeout)
	rep := b.screener.CheckConsecutive(fctx, pool)
	cancel()
	if !rep.Passed {
		return nil
	}
	b.accepted.Add(1)

	res := b.trader.Buy(ctx, pool)
	if !res.Success {
		if res.Err != nil && ctx.Err() == nil {
			b.logger.Printf("[bot] %s buy failed: %v", pool.BaseMint, res.Err)
		}
		return nil
	}
	b.bought.Add(1)

	if err := b.trader.Manage(ctx, res.Position); err != nil {
		return fmt.Errorf("manage position %s: %w", res.Position.ID, err)
	}
	if res.Position.Status.IsTerminal() {
		b.closed.Add(1)
	}
	return nil
}

// Package listener watches DEX programs for new pool accounts and turns each
// creation transaction into detected pools.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"solana-pool-sniper/internal/amm"
	"solana-pool-sniper/internal/decoder"
	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/events"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/queue"
	"solana-pool-sniper/internal/solana"
)

const (
	// DefaultMaxInFlight bounds concurrently handled account changes.
	DefaultMaxInFlight = 16

	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond
)

// Mode is the subscription mode reported in listener events.
const Mode = "account-change"

// ChainSource is the chain access a listener needs.
type ChainSource interface {
	SubscribeProgram(ctx context.Context, filter solana.ProgramFilter) (<-chan solana.AccountNotification, error)
	GetSignaturesForAddress(ctx context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error)
	GetSlot(ctx context.Context) (int64, error)
}

type chainSource struct {
	solana.WSClient
	solana.RPCClient
}

// NewChainSource joins a WebSocket client and an RPC client.
func NewChainSource(ws solana.WSClient, rpc solana.RPCClient) ChainSource {
	return chainSource{WSClient: ws, RPCClient: rpc}
}

// SignatureFilter marks transaction signatures as processed.
type SignatureFilter interface {
	SeenSignature(ctx context.Context, signature string) bool
}

// AccountFilter selects program accounts that look like fresh pools.
type AccountFilter struct {
	DataSize    uint64
	MinLamports uint64 // 0 disables
	MaxLamports uint64 // 0 disables
}

// Match reports whether an account of size bytes holding lamports passes.
func (f AccountFilter) Match(size int, lamports uint64) bool {
	if uint64(size) != f.DataSize {
		return false
	}
	if f.MinLamports > 0 && lamports < f.MinLamports {
		return false
	}
	if f.MaxLamports > 0 && lamports > f.MaxLamports {
		return false
	}
	return true
}

// DefaultFilters returns the account filters for a variant.
func DefaultFilters(v domain.DexVariant) []AccountFilter {
	const minLamports, maxLamports = 1_000_000, 1_000_000_000_000
	switch v {
	case domain.VariantRaydium:
		return []AccountFilter{
			{DataSize: amm.RaydiumV4StateSize, MinLamports: minLamports, MaxLamports: maxLamports},
			{DataSize: amm.RaydiumV4AltStateSize, MinLamports: minLamports, MaxLamports: maxLamports},
		}
	case domain.VariantMeteora:
		return []AccountFilter{{DataSize: amm.MeteoraPoolSize}}
	case domain.VariantPumpSwap:
		return []AccountFilter{{DataSize: amm.PumpSwapPoolSize, MinLamports: minLamports, MaxLamports: maxLamports}}
	}
	return nil
}

// Options configures a Listener.
type Options struct {
	Source  ChainSource
	Decoder *decoder.Decoder
	// Filters default to DefaultFilters for the decoder's variant.
	Filters []AccountFilter
	// Calls serialises live-path RPC calls. Optional.
	Calls *queue.CallQueue
	// Seen drops transactions already processed. Optional.
	Seen        SignatureFilter
	Backfill    BackfillOptions
	MaxInFlight int
	Recorder    *events.Recorder
	Logger      *log.Logger
}

// Listener watches one program.
type Listener struct {
	source      ChainSource
	decoder     *decoder.Decoder
	variant     domain.DexVariant
	programID   string
	filters     []AccountFilter
	calls       *queue.CallQueue
	seen        SignatureFilter
	backfill    BackfillOptions
	maxInFlight int
	recorder    *events.Recorder
	logger      *log.Logger
}

// New creates a listener for the decoder's program.
func New(opts Options) *Listener {
	if opts.Filters == nil {
		opts.Filters = DefaultFilters(opts.Decoder.Variant())
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = DefaultMaxInFlight
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Listener{
		source:      opts.Source,
		decoder:     opts.Decoder,
		variant:     opts.Decoder.Variant(),
		programID:   opts.Decoder.Config().ProgramID,
		filters:     opts.Filters,
		calls:       opts.Calls,
		seen:        opts.Seen,
		backfill:    opts.Backfill.withDefaults(),
		maxInFlight: opts.MaxInFlight,
		recorder:    opts.Recorder,
		logger:      opts.Logger,
	}
}

// Variant returns the DEX this listener watches.
func (l *Listener) Variant() domain.DexVariant { return l.variant }

// Run subscribes once per account size, backfills recent history, and sends
// every decoded pool to out until ctx ends. Subscriptions open before the
// backfill starts so no creation falls between the two; dedup absorbs the
// overlap.
func (l *Listener) Run(ctx context.Context, out chan<- domain.DetectedPool) error {
	l.recorder.Listener(ctx, events.ListenerStarted, l.variant, Mode)

	subs := make([]<-chan solana.AccountNotification, 0, len(l.filters))
	for _, f := range l.filters {
		ch, err := l.source.SubscribeProgram(ctx, solana.ProgramFilter{ProgramID: l.programID, DataSize: f.DataSize})
		if err != nil {
			return fmt.Errorf("subscribe %s size %d: %w", l.variant, f.DataSize, err)
		}
		subs = append(subs, ch)
	}
	l.logger.Printf("[listener] %s subscribed to %s with %d filters", l.variant, l.programID, len(subs))
	l.recorder.Listener(ctx, events.ListenerReady, l.variant, Mode)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := l.Backfill(gctx, out)
		if err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Printf("[listener] %s backfill failed: %v", l.variant, err)
		} else {
			l.logger.Printf("[listener] %s backfill processed %d transactions", l.variant, n)
		}
		return nil
	})

	handlers := new(errgroup.Group)
	handlers.SetLimit(l.maxInFlight)
	for _, ch := range subs {
		ch := ch
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case n, ok := <-ch:
					if !ok {
						return nil
					}
					handlers.Go(func() error {
						l.handle(gctx, n, out)
						return nil
					})
				}
			}
		})
	}

	err := g.Wait()
	_ = handlers.Wait()
	l.recorder.Listener(context.WithoutCancel(ctx), events.ListenerStopped, l.variant, Mode)
	return err
}

// handle processes one account change: the newest signature of the account
// is its creation transaction.
func (l *Listener) handle(ctx context.Context, n solana.AccountNotification, out chan<- domain.DetectedPool) {
	dex := l.variant.String()
	if n.Account.Owner != "" && n.Account.Owner != l.programID {
		observability.RecordListenerEvent(dex, "filtered")
		return
	}
	data, err := n.Account.Bytes()
	if err != nil || !l.match(len(data), n.Account.Lamports) {
		observability.RecordListenerEvent(dex, "filtered")
		return
	}

	var sigs []solana.SignatureInfo
	err = l.call(ctx, func(ctx context.Context) error {
		var err error
		sigs, err = l.source.GetSignaturesForAddress(ctx, n.Pubkey, &solana.SignaturesOpts{Limit: 1})
		return err
	})
	if err != nil {
		observability.RecordListenerEvent(dex, "error")
		l.logger.Printf("[listener] %s signatures for %s: %v", dex, n.Pubkey, err)
		return
	}
	if len(sigs) == 0 {
		observability.RecordListenerEvent(dex, "no_signature")
		return
	}

	tx, err := l.fetchTransaction(ctx, sigs[0].Signature)
	if err != nil {
		observability.RecordListenerEvent(dex, "error")
		l.logger.Printf("[listener] %s transaction %s: %v", dex, sigs[0].Signature, err)
		return
	}
	if l.process(ctx, tx, out) > 0 {
		observability.RecordListenerEvent(dex, "decoded")
	} else {
		observability.RecordListenerEvent(dex, "no_pool")
	}
}

func (l *Listener) match(size int, lamports uint64) bool {
	for _, f := range l.filters {
		if f.Match(size, lamports) {
			return true
		}
	}
	return false
}

// process decodes tx and forwards its pools. It returns the number sent.
func (l *Listener) process(ctx context.Context, tx *solana.Transaction, out chan<- domain.DetectedPool) int {
	if tx == nil || (tx.Meta != nil && tx.Meta.Err != nil) {
		return 0
	}
	if l.seen != nil && l.seen.SeenSignature(ctx, tx.Signature) {
		return 0
	}

	sent := 0
	for _, pool := range l.decoder.Decode(tx) {
		select {
		case out <- pool:
			sent++
		case <-ctx.Done():
			return sent
		}
	}
	return sent
}

// fetchTransaction gets a transaction through the call queue, retrying with
// exponential backoff since fresh transactions are not always served yet.
func (l *Listener) fetchTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		var tx *solana.Transaction
		err := l.call(ctx, func(ctx context.Context) error {
			var err error
			tx, err = l.source.GetTransaction(ctx, signature)
			return err
		})
		if err == nil && tx != nil {
			return tx, nil
		}
		if err == nil {
			err = errors.New("transaction not available")
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == maxRetries-1 {
			break
		}

		delay := baseRetryDelay * time.Duration(1<<attempt)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (l *Listener) call(ctx context.Context, fn func(context.Context) error) error {
	if l.calls == nil {
		return fn(ctx)
	}
	return l.calls.Do(ctx, fn)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

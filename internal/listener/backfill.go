package listener

import (
	"context"
	"fmt"
	"time"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/solana"
)

// Backfill defaults.
const (
	DefaultBackfillSlots = 50
	DefaultBackfillLimit = 1000
	DefaultBatchSize     = 3
	DefaultTxPause       = 200 * time.Millisecond
	DefaultBatchPause    = 1 * time.Second
)

// BackfillOptions configures the startup scan of recent program history.
type BackfillOptions struct {
	Disabled bool
	// Slots is how far behind the current slot to look.
	Slots     int64
	Limit     int
	BatchSize int
	// Pauses default when zero. A negative pause disables it.
	TxPause    time.Duration // after every transaction fetch
	BatchPause time.Duration // between batches
}

func (o BackfillOptions) withDefaults() BackfillOptions {
	if o.Slots <= 0 {
		o.Slots = DefaultBackfillSlots
	}
	if o.Limit <= 0 {
		o.Limit = DefaultBackfillLimit
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	switch {
	case o.TxPause == 0:
		o.TxPause = DefaultTxPause
	case o.TxPause < 0:
		o.TxPause = 0
	}
	switch {
	case o.BatchPause == 0:
		o.BatchPause = DefaultBatchPause
	case o.BatchPause < 0:
		o.BatchPause = 0
	}
	return o
}

// Backfill decodes program transactions from the last Slots slots. Fetches
// are paced by pauses rather than the call queue so startup does not starve
// the live path. It returns the number of transactions fetched.
func (l *Listener) Backfill(ctx context.Context, out chan<- domain.DetectedPool) (int, error) {
	opts := l.backfill
	if opts.Disabled {
		return 0, nil
	}

	latest, err := l.source.GetSlot(ctx)
	if err != nil {
		return 0, fmt.Errorf("get slot: %w", err)
	}
	from := latest - opts.Slots
	if from < 0 {
		from = 0
	}

	sigs, err := l.source.GetSignaturesForAddress(ctx, l.programID, &solana.SignaturesOpts{Limit: opts.Limit})
	if err != nil {
		return 0, fmt.Errorf("get signatures: %w", err)
	}
	recent := make([]solana.SignatureInfo, 0, len(sigs))
	for _, s := range sigs {
		if s.Slot >= from && s.Slot <= latest && s.Err == nil {
			recent = append(recent, s)
		}
	}
	l.logger.Printf("[listener] %s backfill: %d of %d signatures in slots [%d, %d]", l.variant, len(recent), len(sigs), from, latest)

	fetched := 0
	for i := 0; i < len(recent); i += opts.BatchSize {
		end := min(i+opts.BatchSize, len(recent))

		txs := make([]*solana.Transaction, 0, end-i)
		for _, s := range recent[i:end] {
			tx, err := l.source.GetTransaction(ctx, s.Signature)
			if err != nil {
				if ctx.Err() != nil {
					return fetched, ctx.Err()
				}
				l.logger.Printf("[listener] %s backfill transaction %s: %v", l.variant, s.Signature, err)
			} else if tx != nil {
				txs = append(txs, tx)
				fetched++
			}
			if err := sleep(ctx, opts.TxPause); err != nil {
				return fetched, err
			}
		}

		for _, tx := range txs {
			l.process(ctx, tx, out)
		}

		if end < len(recent) {
			if err := sleep(ctx, opts.BatchPause); err != nil {
				return fetched, err
			}
		}
	}
	return fetched, nil
}

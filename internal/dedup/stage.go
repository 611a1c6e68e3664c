// Package dedup turns the raw detection stream into one debounced emission
// per pool.
package dedup

import (
	"context"
	"log"
	"sync"
	"time"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/events"
	"solana-pool-sniper/internal/observability"
)

// Defaults for Options.
const (
	DefaultDebounceDelay = 1 * time.Second
	DefaultSweepInterval = 60 * time.Second
)

// Options configures a Stage.
type Options struct {
	TTL           time.Duration // default 3m, used for the default seen sets
	DebounceDelay time.Duration // default 1s
	SweepInterval time.Duration // default 60s
	OutputBuffer  int           // default 64

	// Signatures and Pools default to in-memory sets.
	Signatures SeenSet
	Pools      SeenSet

	Recorder *events.Recorder
	Logger   *log.Logger
}

type pendingEntry struct {
	pool      domain.DetectedPool
	timer     *time.Timer
	scheduled time.Time
}

// Stage deduplicates transactions by signature and pools by pool id, then
// debounces each new pool before emitting it.
type Stage struct {
	ttl           time.Duration
	delay         time.Duration
	sweepInterval time.Duration
	signatures    SeenSet
	pools         SeenSet
	recorder      *events.Recorder
	logger        *log.Logger
	now           func() time.Time

	out  chan domain.DetectedPool
	done chan struct{}

	mu      sync.Mutex
	closed  bool
	pending map[string]*pendingEntry // poolID -> timer
}

// New creates a Stage.
func New(opts Options) *Stage {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.DebounceDelay <= 0 {
		opts.DebounceDelay = DefaultDebounceDelay
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.OutputBuffer <= 0 {
		opts.OutputBuffer = 64
	}
	if opts.Signatures == nil {
		opts.Signatures = NewMemorySeenSet(opts.TTL)
	}
	if opts.Pools == nil {
		opts.Pools = NewMemorySeenSet(opts.TTL)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Stage{
		ttl:           opts.TTL,
		delay:         opts.DebounceDelay,
		sweepInterval: opts.SweepInterval,
		signatures:    opts.Signatures,
		pools:         opts.Pools,
		recorder:      opts.Recorder,
		logger:        opts.Logger,
		now:           time.Now,
		out:           make(chan domain.DetectedPool, opts.OutputBuffer),
		done:          make(chan struct{}),
		pending:       make(map[string]*pendingEntry),
	}
}

// Output returns the debounced pool stream. It is never closed; consumers
// stop on their own context.
func (s *Stage) Output() <-chan domain.DetectedPool {
	return s.out
}

// SeenSignature marks a transaction signature and reports whether it was
// already processed within the TTL. Store errors count as unseen so a
// transient backend fault does not drop pools.
func (s *Stage) SeenSignature(ctx context.Context, signature string) bool {
	if signature == "" {
		return false
	}
	fresh, err := s.signatures.Add(ctx, signature)
	if err != nil {
		s.logger.Printf("[dedup] signature set: %v", err)
		return false
	}
	if !fresh {
		observability.RecordPoolSuppressed("seen_signature")
	}
	return !fresh
}

// Submit offers one detection. A pool that is still pending restarts its
// debounce delay. A pool seen within the TTL is dropped.
func (s *Stage) Submit(ctx context.Context, pool domain.DetectedPool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if entry, ok := s.pending[pool.PoolID]; ok {
		entry.timer.Stop()
		s.schedule(pool)
		s.mu.Unlock()
		observability.RecordPoolSuppressed("debounced")
		return
	}
	s.mu.Unlock()

	if !pool.HasWSOLQuote() {
		return
	}

	fresh, err := s.pools.Add(ctx, pool.PoolID)
	if err != nil {
		s.logger.Printf("[dedup] pool set: %v", err)
		fresh = true
	}
	if !fresh {
		observability.RecordPoolSuppressed("seen_pool")
		s.recorder.PoolDuplicate(ctx, pool, "seen within dedup window")
		return
	}

	observability.RecordPoolDetected(pool.Variant.String())
	s.recorder.PoolDetected(ctx, pool)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if entry, ok := s.pending[pool.PoolID]; ok {
		entry.timer.Stop()
	}
	s.schedule(pool)
}

// schedule arms the debounce timer for pool. Caller holds mu.
func (s *Stage) schedule(pool domain.DetectedPool) {
	entry := &pendingEntry{pool: pool, scheduled: s.now()}
	entry.timer = time.AfterFunc(s.delay, func() { s.fire(entry) })
	s.pending[pool.PoolID] = entry
}

func (s *Stage) fire(entry *pendingEntry) {
	s.mu.Lock()
	if s.closed || s.pending[entry.pool.PoolID] != entry {
		s.mu.Unlock()
		return
	}
	delete(s.pending, entry.pool.PoolID)
	s.mu.Unlock()

	select {
	case s.out <- entry.pool:
	case <-s.done:
	}
}

// Run consumes detections until in is closed or ctx is done, sweeping
// expired state on every SweepInterval tick.
func (s *Stage) Run(ctx context.Context, in <-chan domain.DetectedPool) error {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case pool, ok := <-in:
			if !ok {
				return nil
			}
			s.Submit(ctx, pool)
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep evicts expired seen entries and stops timers whose entry outlived
// the TTL without firing.
func (s *Stage) Sweep() {
	now := s.now()
	for _, set := range []SeenSet{s.signatures, s.pools} {
		if sw, ok := set.(sweeper); ok {
			sw.Sweep(now)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.pending {
		if now.Sub(entry.scheduled) > s.ttl {
			entry.timer.Stop()
			delete(s.pending, id)
		}
	}
}

// Pending returns the number of pools waiting on their debounce delay.
func (s *Stage) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close cancels every pending timer. No emission happens afterwards.
func (s *Stage) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	for id, entry := range s.pending {
		entry.timer.Stop()
		delete(s.pending, id)
	}
}

package orchestrator

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"solana-pool-sniper/internal/dedup"
	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/events"
	"solana-pool-sniper/internal/filter"
	"solana-pool-sniper/internal/queue"
	"solana-pool-sniper/internal/trader"
)

var discard = log.New(io.Discard, "", 0)

type fakeSource struct {
	variant domain.DexVariant
	pools   []domain.DetectedPool
	err     error
}

func (s *fakeSource) Variant() domain.DexVariant { return s.variant }

func (s *fakeSource) Run(ctx context.Context, out chan<- domain.DetectedPool) error {
	if s.err != nil {
		return s.err
	}
	for _, p := range s.pools {
		select {
		case out <- p:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

type fakeScreener struct {
	mu          sync.Mutex
	pass        map[string]bool
	checked     []string
	hadDeadline bool
}

func (s *fakeScreener) CheckConsecutive(ctx context.Context, pool domain.DetectedPool) filter.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked = append(s.checked, pool.BaseMint)
	_, s.hadDeadline = ctx.Deadline()
	return filter.Report{Passed: s.pass[pool.BaseMint], Rounds: 1}
}

func (s *fakeScreener) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.checked...)
}

type fakeTrader struct {
	mu       sync.Mutex
	buyFails bool
	block    bool // Manage waits for cancellation
	bought   []string
	managed  chan *domain.TradingPosition
	stopped  chan error
}

func newFakeTrader() *fakeTrader {
	return &fakeTrader{managed: make(chan *domain.TradingPosition, 8), stopped: make(chan error, 8)}
}

func (f *fakeTrader) Buy(_ context.Context, pool domain.DetectedPool) trader.TradingResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buyFails {
		return trader.TradingResult{Err: errors.New("not confirmed")}
	}
	f.bought = append(f.bought, pool.BaseMint)
	pos := &domain.TradingPosition{ID: "pos-" + pool.BaseMint, Pool: pool, Status: domain.StatusMonitoring}
	return trader.TradingResult{Success: true, Signature: "buy-" + pool.BaseMint, Position: pos}
}

func (f *fakeTrader) Manage(ctx context.Context, pos *domain.TradingPosition) error {
	f.managed <- pos
	if f.block {
		<-ctx.Done()
		f.stopped <- ctx.Err()
		return ctx.Err()
	}
	if err := pos.Advance(domain.StatusSelling); err != nil {
		return err
	}
	return pos.Advance(domain.StatusSold)
}

type captureSink struct {
	mu    sync.Mutex
	codes []events.Code
}

func (s *captureSink) Insert(_ context.Context, e *domain.DecisionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes = append(s.codes, events.Code(e.Code))
	return nil
}

func (s *captureSink) count(code events.Code) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.codes {
		if c == code {
			n++
		}
	}
	return n
}

func pool(id, mint string) domain.DetectedPool {
	return domain.DetectedPool{
		Variant:   domain.VariantRaydium,
		PoolID:    id,
		BaseMint:  mint,
		QuoteMint: domain.WSOLMint,
		Signature: "sig-" + id,
	}
}

type harness struct {
	bot      *Bot
	screener *fakeScreener
	trader   *fakeTrader
	calls    *queue.CallQueue
	sink     *captureSink
}

func newHarness(t *testing.T, sources []Source, grace time.Duration) *harness {
	t.Helper()
	sink := &captureSink{}
	rec := events.NewRecorder(io.Discard, events.Options{Sinks: []events.Sink{sink}})
	h := &harness{
		screener: &fakeScreener{pass: map[string]bool{"mintA": true}},
		trader:   newFakeTrader(),
		calls:    queue.NewCallQueue(queue.CallQueueOptions{Spacing: time.Millisecond, Logger: discard}),
		sink:     sink,
	}
	bot, err := New(Options{
		Sources:       sources,
		Dedup:         dedup.New(dedup.Options{DebounceDelay: time.Millisecond, Recorder: rec, Logger: discard}),
		Admission:     queue.NewAdmissionQueue(queue.AdmissionOptions{Capacity: 2, Logger: discard}),
		Calls:         h.calls,
		Screener:      h.screener,
		Trader:        h.trader,
		FilterTimeout: time.Second,
		ShutdownGrace: grace,
		Recorder:      rec,
		Logger:        discard,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.bot = bot
	return h
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestBot_PipelineFlow(t *testing.T) {
	// The same pool arrives from two sources; dedup keeps one.
	a := pool("poolA", "mintA")
	b := pool("poolB", "mintB")
	src1 := &fakeSource{variant: domain.VariantRaydium, pools: []domain.DetectedPool{a, b}}
	src2 := &fakeSource{variant: domain.VariantMeteora, pools: []domain.DetectedPool{a}}
	h := newHarness(t, []Source{src1, src2}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.bot.Run(ctx) }()

	select {
	case pos := <-h.trader.managed:
		if pos.Pool.BaseMint != "mintA" {
			t.Errorf("managed %s, want mintA", pos.Pool.BaseMint)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("position was never managed")
	}
	waitFor(t, func() bool { return len(h.screener.calls()) == 2 })
	waitFor(t, func() bool { return h.bot.Stats().Closed == 1 })

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	s := h.bot.Stats()
	if s.Admitted != 2 || s.Accepted != 1 || s.Bought != 1 || s.Closed != 1 {
		t.Errorf("stats = %+v", s)
	}
	if !h.screener.hadDeadline {
		t.Error("filter check ran without a deadline")
	}
	if got := h.sink.count(events.PoolProcessingStart); got != 2 {
		t.Errorf("processing start events = %d, want 2", got)
	}
	if got := h.sink.count(events.PoolProcessingEnd); got != 2 {
		t.Errorf("processing end events = %d, want 2", got)
	}
	if got := h.sink.count(events.DetectedPool); got != 2 {
		t.Errorf("detected events = %d, want 2", got)
	}
}

func TestBot_BuyFailureSkipsManage(t *testing.T) {
	src := &fakeSource{variant: domain.VariantRaydium, pools: []domain.DetectedPool{pool("poolA", "mintA")}}
	h := newHarness(t, []Source{src}, time.Second)
	h.trader.buyFails = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.bot.Run(ctx) }()

	waitFor(t, func() bool { return h.sink.count(events.PoolProcessingEnd) == 1 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(h.trader.managed) != 0 {
		t.Error("Manage called after failed buy")
	}
	if s := h.bot.Stats(); s.Accepted != 1 || s.Bought != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestBot_ShutdownCancelsRunningPoolsAfterGrace(t *testing.T) {
	src := &fakeSource{variant: domain.VariantRaydium, pools: []domain.DetectedPool{pool("poolA", "mintA")}}
	h := newHarness(t, []Source{src}, 20*time.Millisecond)
	h.trader.block = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.bot.Run(ctx) }()

	select {
	case <-h.trader.managed:
	case <-time.After(2 * time.Second):
		t.Fatal("position was never managed")
	}

	start := time.Now()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after shutdown")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("running pool cancelled after %v, before the grace period", elapsed)
	}
	if err := <-h.trader.stopped; !errors.Is(err, context.Canceled) {
		t.Errorf("Manage stopped with %v, want context.Canceled", err)
	}

	err := h.calls.Do(context.Background(), func(context.Context) error { return nil })
	if !errors.Is(err, queue.ErrCallQueueClosed) {
		t.Errorf("call queue after shutdown: %v, want ErrCallQueueClosed", err)
	}
	if h.sink.count(events.PoolProcessingEnd) != 1 {
		t.Error("processing end not recorded for cancelled pool")
	}
}

func TestBot_SourceErrorStopsRun(t *testing.T) {
	bad := &fakeSource{variant: domain.VariantPumpSwap, err: errors.New("subscribe refused")}
	good := &fakeSource{variant: domain.VariantRaydium}
	h := newHarness(t, []Source{good, bad}, time.Second)

	select {
	case err := <-runAsync(h.bot):
		if err == nil || err.Error() != "pumpswap listener: subscribe refused" {
			t.Fatalf("Run error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on source failure")
	}
}

func runAsync(b *Bot) <-chan error {
	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()
	return done
}

func TestNew_RequiresStages(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error without sources")
	}
	_, err := New(Options{Sources: []Source{&fakeSource{}}})
	if err == nil {
		t.Fatal("expected error without dedup stage")
	}
}

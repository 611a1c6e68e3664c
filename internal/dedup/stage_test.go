package dedup

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/events"
)

func testPool(id string) domain.DetectedPool {
	return domain.DetectedPool{
		Variant:   domain.VariantRaydium,
		PoolID:    id,
		BaseMint:  "mint-" + id,
		QuoteMint: domain.WSOLMint,
		Signature: "sig-" + id,
	}
}

func newTestStage(delay time.Duration) *Stage {
	return New(Options{
		DebounceDelay: delay,
		Recorder:      events.Nop(),
	})
}

func collect(ch <-chan domain.DetectedPool, wait time.Duration) []domain.DetectedPool {
	var got []domain.DetectedPool
	deadline := time.After(wait)
	for {
		select {
		case p := <-ch:
			got = append(got, p)
		case <-deadline:
			return got
		}
	}
}

func TestStage_SamePoolEmitsOnce(t *testing.T) {
	s := newTestStage(20 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	s.Submit(ctx, testPool("A"))
	time.Sleep(50 * time.Millisecond)
	s.Submit(ctx, testPool("A"))

	got := collect(s.Output(), 100*time.Millisecond)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].PoolID)
}

func TestStage_DistinctPools(t *testing.T) {
	s := newTestStage(10 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	s.Submit(ctx, testPool("A"))
	s.Submit(ctx, testPool("B"))

	got := collect(s.Output(), 80*time.Millisecond)
	assert.Len(t, got, 2)
}

func TestStage_DebounceRestartsDelay(t *testing.T) {
	s := newTestStage(60 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	start := time.Now()
	s.Submit(ctx, testPool("A"))
	time.Sleep(40 * time.Millisecond)
	s.Submit(ctx, testPool("A"))
	assert.Equal(t, 1, s.Pending())

	select {
	case <-s.Output():
		// second submit at ~40ms re-armed the 60ms delay
		assert.GreaterOrEqual(t, time.Since(start), 95*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("no emission")
	}

	assert.Empty(t, collect(s.Output(), 100*time.Millisecond))
}

func TestStage_ExpiredPoolIsNew(t *testing.T) {
	pools := NewMemorySeenSet(time.Minute)
	clock := time.Unix(1_700_000_000, 0)
	pools.now = func() time.Time { return clock }

	s := New(Options{DebounceDelay: 5 * time.Millisecond, Pools: pools})
	defer s.Close()
	ctx := context.Background()

	s.Submit(ctx, testPool("A"))
	require.Len(t, collect(s.Output(), 40*time.Millisecond), 1)

	s.Submit(ctx, testPool("A"))
	require.Empty(t, collect(s.Output(), 40*time.Millisecond))

	clock = clock.Add(time.Minute + time.Second)
	s.Submit(ctx, testPool("A"))
	assert.Len(t, collect(s.Output(), 40*time.Millisecond), 1)
}

func TestStage_CloseCancelsPending(t *testing.T) {
	s := newTestStage(30 * time.Millisecond)
	ctx := context.Background()

	s.Submit(ctx, testPool("A"))
	s.Submit(ctx, testPool("B"))
	require.Equal(t, 2, s.Pending())

	s.Close()
	assert.Equal(t, 0, s.Pending())
	assert.Empty(t, collect(s.Output(), 80*time.Millisecond))

	// submissions after close are ignored
	s.Submit(ctx, testPool("C"))
	assert.Equal(t, 0, s.Pending())
	s.Close()
}

func TestStage_SeenSignature(t *testing.T) {
	s := newTestStage(time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	assert.False(t, s.SeenSignature(ctx, "sig1"))
	assert.True(t, s.SeenSignature(ctx, "sig1"))
	assert.False(t, s.SeenSignature(ctx, "sig2"))
	assert.False(t, s.SeenSignature(ctx, ""))
}

func TestStage_NonWSOLDropped(t *testing.T) {
	s := newTestStage(5 * time.Millisecond)
	defer s.Close()

	p := testPool("A")
	p.QuoteMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	s.Submit(context.Background(), p)

	assert.Empty(t, collect(s.Output(), 30*time.Millisecond))
}

func TestStage_DuplicateEventRecorded(t *testing.T) {
	var buf bytes.Buffer
	s := New(Options{DebounceDelay: time.Hour, Recorder: events.NewRecorder(&buf, events.Options{})})
	defer s.Close()
	ctx := context.Background()

	s.Submit(ctx, testPool("A"))
	s.Close()
	s2 := New(Options{DebounceDelay: time.Hour, Pools: s.pools, Recorder: events.NewRecorder(&buf, events.Options{})})
	defer s2.Close()
	s2.Submit(ctx, testPool("A"))

	out := buf.String()
	assert.Contains(t, out, `"code":"DETECTED_POOL"`)
	assert.Contains(t, out, `"code":"POOL_DUPLICATE"`)
}

func TestStage_RunConsumesInput(t *testing.T) {
	s := newTestStage(5 * time.Millisecond)
	defer s.Close()

	in := make(chan domain.DetectedPool, 3)
	in <- testPool("A")
	in <- testPool("A")
	in <- testPool("B")
	close(in)

	require.NoError(t, s.Run(context.Background(), in))
	assert.Len(t, collect(s.Output(), 50*time.Millisecond), 2)
}

func TestStage_RunStopsOnContext(t *testing.T) {
	s := newTestStage(time.Millisecond)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx, make(chan domain.DetectedPool)) }()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestStage_SweepStopsOrphanedTimers(t *testing.T) {
	s := New(Options{TTL: time.Minute, DebounceDelay: time.Hour})
	defer s.Close()

	clock := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return clock }

	s.Submit(context.Background(), testPool("A"))
	require.Equal(t, 1, s.Pending())

	s.Sweep()
	assert.Equal(t, 1, s.Pending())

	clock = clock.Add(2 * time.Minute)
	s.Sweep()
	assert.Equal(t, 0, s.Pending())
}

func TestMemorySeenSet_Sweep(t *testing.T) {
	set := NewMemorySeenSet(time.Minute)
	clock := time.Unix(1_700_000_000, 0)
	set.now = func() time.Time { return clock }
	ctx := context.Background()

	fresh, err := set.Add(ctx, "a")
	require.NoError(t, err)
	assert.True(t, fresh)

	clock = clock.Add(30 * time.Second)
	_, _ = set.Add(ctx, "b")

	assert.Equal(t, 1, set.Sweep(clock.Add(31*time.Second)))
	assert.Equal(t, 1, set.Len())

	set.Clear()
	assert.Equal(t, 0, set.Len())
}

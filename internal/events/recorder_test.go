package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-pool-sniper/internal/domain"
)

type captureSink struct {
	mu     sync.Mutex
	events []domain.DecisionEvent
	err    error
}

func (s *captureSink) Insert(_ context.Context, e *domain.DecisionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *e)
	return s.err
}

func testPool() domain.DetectedPool {
	return domain.DetectedPool{
		Variant:   domain.VariantRaydium,
		PoolID:    "pool1",
		BaseMint:  "mint1",
		QuoteMint: domain.WSOLMint,
		Signature: "sig1",
	}
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestCodes_Closed(t *testing.T) {
	seen := map[Code]bool{}
	for _, c := range AllCodes() {
		assert.True(t, c.IsValid())
		assert.False(t, seen[c], "duplicate code %s", c)
		seen[c] = true
	}
	assert.Len(t, seen, 37)
	assert.False(t, Code("SOMETHING_ELSE").IsValid())
}

func TestRecorder_PoolDetected(t *testing.T) {
	var buf bytes.Buffer
	sink := &captureSink{}
	r := NewRecorder(&buf, Options{Sinks: []Sink{sink}})

	r.PoolDetected(context.Background(), testPool())

	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "DETECTED_POOL", got[0]["code"])
	assert.Equal(t, "raydium", got[0]["dex"])
	assert.Equal(t, "pool1", got[0]["pool"])
	assert.Equal(t, "mint1", got[0]["mint"])
	assert.Equal(t, "info", got[0]["level"])

	require.Len(t, sink.events, 1)
	assert.Equal(t, "DETECTED_POOL", sink.events[0].Code)
	assert.NotEmpty(t, sink.events[0].ID)
	assert.False(t, sink.events[0].Time.IsZero())
}

func TestRecorder_SkipUsesFilterCode(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorder(&buf, Options{})

	r.Skip(context.Background(), testPool(), domain.FilterResult{
		Name:     "pool-size",
		Message:  "Pool size 10 < 80",
		Code:     string(SkipPoolSize),
		Duration: 15 * time.Millisecond,
	})

	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "SKIP_POOL_SIZE", got[0]["code"])
	assert.Equal(t, "pool-size", got[0]["filter"])
	assert.Equal(t, "debug", got[0]["level"])
}

func TestRecorder_RejectsUnknownCode(t *testing.T) {
	var buf bytes.Buffer
	sink := &captureSink{}
	r := NewRecorder(&buf, Options{Sinks: []Sink{sink}})

	r.Record(context.Background(), Code("NOT_A_CODE"), domain.DecisionEvent{})

	assert.Empty(t, sink.events)
	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "error", got[0]["level"])
}

func TestRecorder_PoolDecisionFallbackNames(t *testing.T) {
	var buf bytes.Buffer
	sink := &captureSink{}
	r := NewRecorder(&buf, Options{Sinks: []Sink{sink}})

	r.PoolDecision(context.Background(), testPool(), false, "failed filters", []string{"mutable", "socials"}, nil)

	require.Len(t, sink.events, 1)
	ev := sink.events[0]
	assert.Equal(t, "POOL_REJECTED", ev.Code)
	assert.Equal(t, "Unknown", ev.TokenName)
	assert.Equal(t, []string{"mutable", "socials"}, ev.FailedFilters)

	r.PoolDecision(context.Background(), testPool(), true, "passed", nil, &domain.TokenMetadata{Name: "Cat", Symbol: "CAT"})
	require.Len(t, sink.events, 2)
	assert.Equal(t, "POOL_ACCEPTED", sink.events[1].Code)
	assert.Equal(t, "CAT", sink.events[1].TokenSymbol)
}

func TestRecorder_SinkErrorDoesNotStopOthers(t *testing.T) {
	var buf bytes.Buffer
	failing := &captureSink{err: errors.New("db down")}
	ok := &captureSink{}
	r := NewRecorder(&buf, Options{Sinks: []Sink{failing, ok}})

	r.Trade(context.Background(), BuyFailed, testPool(), "", "All buy attempts failed")

	assert.Len(t, failing.events, 1)
	assert.Len(t, ok.events, 1)
	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "error", got[0]["level"])
}

func TestRecorder_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorder(&buf, Options{Level: zerolog.InfoLevel})

	r.Filter(context.Background(), FilterStart, testPool(), domain.FilterResult{Name: "mutable"})
	assert.Empty(t, buf.String())

	r.Processing(context.Background(), testPool(), 0)
	r.Processing(context.Background(), testPool(), time.Second)
	got := lines(t, &buf)
	require.Len(t, got, 2)
	assert.Equal(t, "POOL_PROCESSING_START", got[0]["code"])
	assert.Equal(t, "POOL_PROCESSING_END", got[1]["code"])
}

func TestRecorder_NilAndNop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() { r.PoolDetected(context.Background(), testPool()) })
	assert.NotPanics(t, func() { Nop().Listener(context.Background(), ListenerStarted, domain.VariantMeteora, "subscribe") })
}

// Package events writes the decision trail: one structured line per pipeline
// decision, tagged with a code from the closed taxonomy in codes.go.
package events

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/observability"
)

// Sink persists decision events. storage.DecisionStore implementations satisfy it.
type Sink interface {
	Insert(ctx context.Context, e *domain.DecisionEvent) error
}

// Options configures a Recorder.
type Options struct {
	// Sinks receive every event after it is logged.
	Sinks []Sink
	// SinkTimeout bounds each sink write. Defaults to 2s.
	SinkTimeout time.Duration
	// Level is the minimum zerolog level. Defaults to debug.
	Level zerolog.Level
	// Logger receives sink failures. Defaults to log.Default().
	Logger *log.Logger
}

// Recorder emits decision events.
type Recorder struct {
	log         zerolog.Logger
	sinks       []Sink
	sinkTimeout time.Duration
	diag        *log.Logger
	now         func() time.Time
}

// NewRecorder creates a recorder writing JSON lines to w.
func NewRecorder(w io.Writer, opts Options) *Recorder {
	if opts.SinkTimeout == 0 {
		opts.SinkTimeout = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Recorder{
		log:         zerolog.New(w).Level(opts.Level).With().Timestamp().Logger(),
		sinks:       opts.Sinks,
		sinkTimeout: opts.SinkTimeout,
		diag:        opts.Logger,
		now:         time.Now,
	}
}

// Nop returns a recorder that discards everything.
func Nop() *Recorder {
	return &Recorder{log: zerolog.Nop(), diag: log.New(io.Discard, "", 0), now: time.Now}
}

// Record logs an event and forwards it to every sink. Invalid codes are
// logged as errors and not forwarded.
func (r *Recorder) Record(ctx context.Context, code Code, ev domain.DecisionEvent) {
	if r == nil {
		return
	}
	if !code.IsValid() {
		r.log.Error().Str("code", string(code)).Msg("unknown decision code")
		return
	}

	ev.Code = string(code)
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = r.now()
	}

	e := r.log.WithLevel(levelFor(code)).Str("code", ev.Code)
	if ev.Dex != "" {
		e = e.Str("dex", ev.Dex)
	}
	if ev.PoolID != "" {
		e = e.Str("pool", ev.PoolID)
	}
	if ev.Mint != "" {
		e = e.Str("mint", ev.Mint)
	}
	if ev.Signature != "" {
		e = e.Str("signature", ev.Signature)
	}
	if ev.Filter != "" {
		e = e.Str("filter", ev.Filter)
	}
	if ev.Reason != "" {
		e = e.Str("reason", ev.Reason)
	}
	if ev.TokenName != "" {
		e = e.Str("tokenName", ev.TokenName).Str("tokenSymbol", ev.TokenSymbol)
	}
	if len(ev.FailedFilters) > 0 {
		e = e.Strs("failedFilters", ev.FailedFilters)
	}
	if ev.Duration > 0 {
		e = e.Dur("duration", ev.Duration)
	}
	e.Msg(ev.Code)

	observability.RecordDecisionEvent(ev.Code)

	for _, sink := range r.sinks {
		sctx, cancel := context.WithTimeout(ctx, r.sinkTimeout)
		if err := sink.Insert(sctx, &ev); err != nil {
			r.diag.Printf("[events] sink insert %s: %v", ev.Code, err)
		}
		cancel()
	}
}

func levelFor(code Code) zerolog.Level {
	switch code {
	case BuyFailed, SellFailed, JupTxSendFail, LPCheckFailed:
		return zerolog.ErrorLevel
	case SellAbandoned, SellTimeout:
		return zerolog.WarnLevel
	case SkipRouteNotFound, SkipImpactGtLimit, SkipNoLock15m, SkipBurnTooLow, SkipMutable,
		SkipRenounced, SkipNoSocials, SkipNoImage, SkipPoolSize, SkipPoolAge,
		SkipHolderConcentration, SkipToken2022Extension, FilterStart, FilterPass, FilterFail:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

func poolEvent(pool domain.DetectedPool) domain.DecisionEvent {
	return domain.DecisionEvent{
		Dex:       pool.Variant.String(),
		PoolID:    pool.PoolID,
		Mint:      pool.BaseMint,
		Signature: pool.Signature,
	}
}

// PoolDetected records a decoded pool.
func (r *Recorder) PoolDetected(ctx context.Context, pool domain.DetectedPool) {
	r.Record(ctx, DetectedPool, poolEvent(pool))
}

// PoolDuplicate records a detection suppressed by dedup.
func (r *Recorder) PoolDuplicate(ctx context.Context, pool domain.DetectedPool, reason string) {
	ev := poolEvent(pool)
	ev.Reason = reason
	r.Record(ctx, PoolDuplicate, ev)
}

// Skip records a rejecting filter result.
func (r *Recorder) Skip(ctx context.Context, pool domain.DetectedPool, res domain.FilterResult) {
	ev := poolEvent(pool)
	ev.Filter = res.Name
	ev.Reason = res.Message
	ev.Duration = res.Duration
	r.Record(ctx, Code(res.Code), ev)
}

// Filter records FILTER_START, FILTER_PASS or FILTER_FAIL.
func (r *Recorder) Filter(ctx context.Context, code Code, pool domain.DetectedPool, res domain.FilterResult) {
	ev := poolEvent(pool)
	ev.Filter = res.Name
	ev.Reason = res.Message
	ev.Duration = res.Duration
	r.Record(ctx, code, ev)
}

// PoolDecision records POOL_ACCEPTED or POOL_REJECTED.
func (r *Recorder) PoolDecision(ctx context.Context, pool domain.DetectedPool, accepted bool, reason string, failed []string, meta *domain.TokenMetadata) {
	ev := poolEvent(pool)
	ev.Reason = reason
	ev.FailedFilters = failed
	ev.TokenName, ev.TokenSymbol = meta.DisplayName()
	code := PoolRejected
	if accepted {
		code = PoolAccepted
	}
	r.Record(ctx, code, ev)
}

// Processing records POOL_PROCESSING_START, or POOL_PROCESSING_END when d > 0.
func (r *Recorder) Processing(ctx context.Context, pool domain.DetectedPool, d time.Duration) {
	ev := poolEvent(pool)
	code := PoolProcessingStart
	if d > 0 {
		code = PoolProcessingEnd
		ev.Duration = d
	}
	r.Record(ctx, code, ev)
}

// Trade records a buy or sell outcome.
func (r *Recorder) Trade(ctx context.Context, code Code, pool domain.DetectedPool, signature, reason string) {
	ev := poolEvent(pool)
	ev.Signature = signature
	ev.Reason = reason
	r.Record(ctx, code, ev)
}

// Listener records a listener lifecycle event.
func (r *Recorder) Listener(ctx context.Context, code Code, dex domain.DexVariant, mode string) {
	r.Record(ctx, code, domain.DecisionEvent{Dex: dex.String(), Reason: mode})
}

package filter

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/events"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/services"
)

// Pipeline defaults.
const (
	DefaultRounds   = 2
	DefaultInterval = 3 * time.Second
)

// Options configures a Pipeline.
type Options struct {
	// Rounds is the number of consecutive clean rounds required to accept.
	Rounds int
	// Interval is the pause between rounds.
	Interval time.Duration
	// Metadata resolves token names for the decision event. Optional.
	Metadata services.MetadataService
	Recorder *events.Recorder
	Logger   *log.Logger
}

// Report is the outcome of one or more rounds.
type Report struct {
	Passed        bool
	Rounds        int // rounds evaluated
	Results       []domain.FilterResult
	FailedFilters []string
}

// Pipeline runs filters in order.
type Pipeline struct {
	filters  []Filter
	rounds   int
	interval time.Duration
	metadata services.MetadataService
	recorder *events.Recorder
	logger   *log.Logger
}

// NewPipeline creates a pipeline over filters.
func NewPipeline(filters []Filter, opts Options) *Pipeline {
	if opts.Rounds <= 0 {
		opts.Rounds = DefaultRounds
	}
	if opts.Interval < 0 {
		opts.Interval = 0
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Pipeline{
		filters:  filters,
		rounds:   opts.Rounds,
		interval: opts.Interval,
		metadata: opts.Metadata,
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
}

// Filters returns the filter names in evaluation order.
func (p *Pipeline) Filters() []string {
	names := make([]string, len(p.filters))
	for i, f := range p.filters {
		names[i] = f.Name()
	}
	return names
}

// CheckOnce evaluates every filter once and records the decision.
func (p *Pipeline) CheckOnce(ctx context.Context, pool domain.DetectedPool) Report {
	rep := p.round(ctx, pool)
	rep.Rounds = 1
	p.decide(ctx, pool, rep)
	return rep
}

// CheckConsecutive requires the configured number of consecutive clean
// rounds. It stops at the first failing round and waits Interval between
// rounds, never after the last one.
func (p *Pipeline) CheckConsecutive(ctx context.Context, pool domain.DetectedPool) Report {
	var rep Report
	for i := 0; i < p.rounds; i++ {
		rep = p.round(ctx, pool)
		rep.Rounds = i + 1
		if !rep.Passed {
			p.logger.Printf("[filter] %s round %d/%d failed: %s", pool.BaseMint, i+1, p.rounds, strings.Join(rep.FailedFilters, ","))
			break
		}
		if i == p.rounds-1 {
			break
		}

		p.recorder.Record(ctx, events.WaitingConsecutiveMatches, domain.DecisionEvent{
			Dex:    pool.Variant.String(),
			PoolID: pool.PoolID,
			Mint:   pool.BaseMint,
			Reason: fmt.Sprintf("round %d/%d passed", i+1, p.rounds),
		})

		t := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			rep.Passed = false
			p.logger.Printf("[filter] %s consecutive check cancelled: %v", pool.BaseMint, ctx.Err())
			p.decide(ctx, pool, rep)
			return rep
		case <-t.C:
		}
	}
	p.decide(ctx, pool, rep)
	return rep
}

// round runs every filter once. A panicking filter is reported as failed.
func (p *Pipeline) round(ctx context.Context, pool domain.DetectedPool) Report {
	rep := Report{Results: make([]domain.FilterResult, 0, len(p.filters))}
	for _, f := range p.filters {
		res := p.run(ctx, f, pool)
		rep.Results = append(rep.Results, res)
		observability.RecordFilterResult(res.Name, res.OK, res.Duration.Seconds())

		if res.OK {
			p.recorder.Filter(ctx, events.FilterPass, pool, res)
			continue
		}
		rep.FailedFilters = append(rep.FailedFilters, res.Name)
		p.recorder.Filter(ctx, events.FilterFail, pool, res)
		if res.Code != "" {
			p.recorder.Skip(ctx, pool, res)
		}
	}
	rep.Passed = len(rep.FailedFilters) == 0
	return rep
}

func (p *Pipeline) run(ctx context.Context, f Filter, pool domain.DetectedPool) (res domain.FilterResult) {
	name := f.Name()
	p.recorder.Filter(ctx, events.FilterStart, pool, domain.FilterResult{Name: name})

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("[filter] %s panicked on %s: %v", name, pool.BaseMint, r)
			res = domain.FilterResult{Name: name, OK: false, Message: fmt.Sprintf("Filter execution failed: %v", r)}
		}
		res.Name = name
		res.Duration = time.Since(start)
	}()
	return f.Check(ctx, pool)
}

func (p *Pipeline) decide(ctx context.Context, pool domain.DetectedPool, rep Report) {
	var meta *domain.TokenMetadata
	if p.metadata != nil {
		md, err := p.metadata.Metadata(ctx, pool.BaseMint)
		if err != nil {
			p.logger.Printf("[filter] token name for %s: %v", pool.BaseMint, err)
		}
		meta = md
	}

	reason := "All filters passed"
	if !rep.Passed {
		reason = fmt.Sprintf("Failed %d filters", len(rep.FailedFilters))
		if len(rep.FailedFilters) == 0 {
			reason = "Consecutive check interrupted"
		}
	}
	p.recorder.PoolDecision(ctx, pool, rep.Passed, reason, rep.FailedFilters, meta)
	observability.RecordPoolDecision(pool.Variant.String(), rep.Passed)
}

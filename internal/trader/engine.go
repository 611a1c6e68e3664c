// Package trader buys admitted pools on Raydium v4 and manages the resulting
// positions until they are sold or abandoned.
package trader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"solana-pool-sniper/internal/amm"
	"solana-pool-sniper/internal/cache"
	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/events"
	"solana-pool-sniper/internal/executor"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/queue"
	"solana-pool-sniper/internal/solana"
	"solana-pool-sniper/internal/storage"
)

// ErrPoolSizeOutOfRange is returned when the quote reserve is outside the
// configured bounds.
var ErrPoolSizeOutOfRange = errors.New("pool size out of range")

// Chain is the RPC surface the engine reads.
type Chain interface {
	GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error)
	GetAccountInfoSlice(ctx context.Context, pubkey string, offset, length uint64) (*solana.AccountInfo, error)
	GetTokenAccountBalance(ctx context.Context, account string) (*solana.TokenAmount, error)
	GetLatestBlockhash(ctx context.Context) (*solana.Blockhash, error)
}

// Config holds the trading parameters. Amounts are lamports.
type Config struct {
	QuoteAmount uint64
	MinPoolSize uint64 // 0 disables
	MaxPoolSize uint64 // 0 disables

	AutoBuyDelay   time.Duration
	MaxBuyRetries  int
	BuySlippageBps uint64

	AutoSell        bool
	AutoSellDelay   time.Duration
	MaxSellRetries  int
	SellSlippageBps uint64

	// Compute budget, applied to direct submissions only.
	UnitLimit uint32
	UnitPrice uint64

	Exit               ExitRules
	PriceCheckInterval time.Duration
	PriceCheckDuration time.Duration
}

// Options wires the engine's collaborators. Chain, Submitter and Wallet are
// required.
type Options struct {
	Chain     Chain
	Submitter executor.Submitter
	// Wallet owns the token accounts. It must already hold a WSOL account.
	Wallet    solana.PublicKey
	Calls     *queue.CallQueue
	Pools     *cache.PoolCache
	Markets   *cache.MarketCache
	Positions storage.PositionStore
	Recorder  *events.Recorder
	Logger    *log.Logger
}

// TradingResult is the outcome of a buy.
type TradingResult struct {
	Success   bool
	Signature string
	Price     uint64 // lamports per whole token
	Amount    uint64 // raw token units
	Position  *domain.TradingPosition
	Err       error
}

// Engine executes buys and runs the sell side of each position.
type Engine struct {
	cfg       Config
	chain     Chain
	submitter executor.Submitter
	wallet    solana.PublicKey
	calls     *queue.CallQueue
	pools     *cache.PoolCache
	markets   *cache.MarketCache
	positions storage.PositionStore
	recorder  *events.Recorder
	logger    *log.Logger

	mu     sync.Mutex
	active map[string]*domain.TradingPosition
}

// NewEngine creates an engine.
func NewEngine(cfg Config, opts Options) *Engine {
	if cfg.MaxBuyRetries <= 0 {
		cfg.MaxBuyRetries = 1
	}
	if cfg.MaxSellRetries <= 0 {
		cfg.MaxSellRetries = 1
	}
	if opts.Pools == nil {
		opts.Pools = cache.NewPoolCache()
	}
	if opts.Markets == nil {
		opts.Markets = cache.NewMarketCache()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Engine{
		cfg:       cfg,
		chain:     opts.Chain,
		submitter: opts.Submitter,
		wallet:    opts.Wallet,
		calls:     opts.Calls,
		pools:     opts.Pools,
		markets:   opts.Markets,
		positions: opts.Positions,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
		active:    make(map[string]*domain.TradingPosition),
	}
}

// Open returns the positions that are not yet terminal.
func (e *Engine) Open() []domain.TradingPosition {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.TradingPosition, 0, len(e.active))
	for _, p := range e.active {
		out = append(out, *p)
	}
	return out
}

// swapContext is everything needed to build swaps against one pool.
type swapContext struct {
	state    *amm.LiquidityStateV4
	keys     *amm.PoolKeys
	baseATA  solana.PublicKey
	quoteATA solana.PublicKey
}

// Buy spends QuoteAmount on the pool's base token. On confirmation a position
// is opened in monitoring.
func (e *Engine) Buy(ctx context.Context, pool domain.DetectedPool) TradingResult {
	sc, err := e.prepare(ctx, pool)
	if err != nil {
		return e.buyFailed(ctx, pool, "", err)
	}

	r, err := e.reserves(ctx, sc)
	if err != nil {
		return e.buyFailed(ctx, pool, "", err)
	}
	if !e.sizeOK(r.Quote) {
		err := fmt.Errorf("%w: quote reserve %d not in [%d, %d]", ErrPoolSizeOutOfRange, r.Quote, e.cfg.MinPoolSize, e.cfg.MaxPoolSize)
		return e.buyFailed(ctx, pool, "", err)
	}

	if err := sleep(ctx, e.cfg.AutoBuyDelay); err != nil {
		return e.buyFailed(ctx, pool, "", err)
	}

	num, den := sc.state.Fee()
	var (
		lastErr error
		lastSig string
	)
	for attempt := 1; attempt <= e.cfg.MaxBuyRetries; attempt++ {
		if attempt > 1 {
			if fresh, err := e.reserves(ctx, sc); err == nil {
				r = fresh
			}
		}
		out := amm.BuyQuote(e.cfg.QuoteAmount, r, num, den)
		ixs := e.computeBudget()
		ixs = append(ixs,
			solana.CreateAssociatedTokenAccountIdempotent(e.wallet, sc.baseATA, e.wallet, sc.keys.BaseMint),
			amm.SwapBaseIn(sc.keys, sc.quoteATA, sc.baseATA, e.wallet, e.cfg.QuoteAmount, amm.MinAmountOut(out, e.cfg.BuySlippageBps)),
		)

		res, err := e.submit(ctx, "buy", ixs)
		if res.Signature != "" {
			lastSig = res.Signature
		}
		if err == nil {
			return e.open(ctx, pool, sc, res.Signature, out)
		}
		lastErr = err
		e.logger.Printf("[trader] buy %s attempt %d/%d: %v", pool.BaseMint, attempt, e.cfg.MaxBuyRetries, err)
		if ctx.Err() != nil {
			break
		}
	}
	return e.buyFailed(ctx, pool, lastSig, lastErr)
}

func (e *Engine) buyFailed(ctx context.Context, pool domain.DetectedPool, sig string, err error) TradingResult {
	e.logger.Printf("[trader] buy %s failed: %v", pool.BaseMint, err)
	e.recorder.Trade(ctx, events.BuyFailed, pool, sig, err.Error())
	return TradingResult{Signature: sig, Err: err}
}

// open records a confirmed buy. The received amount is read back from the
// token account, falling back to the quoted amount.
func (e *Engine) open(ctx context.Context, pool domain.DetectedPool, sc *swapContext, sig string, quoted uint64) TradingResult {
	amount := quoted
	err := e.call(ctx, func(ctx context.Context) error {
		bal, err := e.chain.GetTokenAccountBalance(ctx, sc.baseATA.String())
		if err != nil {
			return err
		}
		if bal != nil && bal.Amount > 0 {
			amount = bal.Amount
		}
		return nil
	})
	if err != nil {
		e.logger.Printf("[trader] balance of %s: %v, using quoted %d", sc.baseATA, err, quoted)
	}

	pos := &domain.TradingPosition{
		ID:          uuid.NewString(),
		Pool:        pool,
		BuyTxID:     sig,
		BuyPrice:    unitPrice(e.cfg.QuoteAmount, amount, sc.keys.BaseDecimals),
		QuoteAmount: e.cfg.QuoteAmount,
		TokenAmount: amount,
		OpenedAt:    time.Now(),
		Status:      domain.StatusBuying,
	}
	if e.positions != nil {
		if err := e.positions.Insert(ctx, pos); err != nil {
			e.logger.Printf("[trader] store position %s: %v", pos.ID, err)
		}
	}
	_ = pos.Advance(domain.StatusMonitoring)
	e.persist(ctx, pos)
	e.track(pos)

	e.logger.Printf("[trader] bought %d of %s for %d lamports: %s", amount, pool.BaseMint, e.cfg.QuoteAmount, sig)
	e.recorder.Trade(ctx, events.BuySuccess, pool, sig, fmt.Sprintf("bought %d for %d lamports", amount, e.cfg.QuoteAmount))
	return TradingResult{
		Success:   true,
		Signature: sig,
		Price:     pos.BuyPrice,
		Amount:    amount,
		Position:  pos,
	}
}

// Manage runs the sell side of an open position: optional delay, price
// monitoring, then the sell. It returns when the position is terminal, when
// auto-sell is off, or when ctx ends. In the last two cases the position
// stays in monitoring.
func (e *Engine) Manage(ctx context.Context, pos *domain.TradingPosition) error {
	if !e.cfg.AutoSell || pos.Status.IsTerminal() {
		return nil
	}
	if pos.TokenAmount == 0 {
		e.abandon(ctx, pos, "empty token balance")
		return nil
	}
	if err := sleep(ctx, e.cfg.AutoSellDelay); err != nil {
		return err
	}

	sc, err := e.prepare(ctx, pos.Pool)
	if err != nil {
		e.abandon(ctx, pos, err.Error())
		return err
	}

	signal, err := e.watch(ctx, sc, pos)
	if err != nil {
		return err
	}
	observability.RecordPositionExit(signal.String())

	switch signal {
	case SignalAbandon:
		e.abandon(ctx, pos, fmt.Sprintf("value fell below %d%% of spend", e.cfg.Exit.SkipIfLostMoreThan))
		return nil
	case SignalStopLoss:
		e.recorder.Trade(ctx, events.SellStopLoss, pos.Pool, "", "stop loss hit")
	case SignalTakeProfit:
		e.recorder.Trade(ctx, events.SellTakeProfit, pos.Pool, "", "take profit hit")
	case SignalTimeout:
		e.recorder.Trade(ctx, events.SellTimeout, pos.Pool, "", "price check window elapsed")
	}
	return e.sell(ctx, sc, pos)
}

// watch samples the position value until a trigger fires or the sampling
// budget runs out.
func (e *Engine) watch(ctx context.Context, sc *swapContext, pos *domain.TradingPosition) (Signal, error) {
	if e.cfg.PriceCheckInterval <= 0 || e.cfg.PriceCheckDuration <= 0 {
		return SignalImmediate, nil
	}

	m := NewMonitor(pos.QuoteAmount, e.cfg.Exit)
	num, den := sc.state.Fee()
	samples := int(e.cfg.PriceCheckDuration / e.cfg.PriceCheckInterval)
	for i := 0; i < samples; i++ {
		r, err := e.reserves(ctx, sc)
		if err != nil {
			if ctx.Err() != nil {
				return Hold, ctx.Err()
			}
			e.logger.Printf("[trader] price check %s: %v", pos.Pool.BaseMint, err)
		} else {
			value := amm.SellQuote(pos.TokenAmount, r, num, den)
			if s := m.Observe(value); s != Hold {
				e.logger.Printf("[trader] %s %s: value %d, stop %d, target %d", pos.Pool.BaseMint, s, value, m.StopLoss(), m.TakeProfit())
				return s, nil
			}
		}
		if err := sleep(ctx, e.cfg.PriceCheckInterval); err != nil {
			return Hold, err
		}
	}
	return SignalTimeout, nil
}

func (e *Engine) sell(ctx context.Context, sc *swapContext, pos *domain.TradingPosition) error {
	if err := pos.Advance(domain.StatusSelling); err != nil {
		return err
	}
	e.persist(ctx, pos)

	num, den := sc.state.Fee()
	var (
		lastErr error
		lastSig string
	)
	for attempt := 1; attempt <= e.cfg.MaxSellRetries; attempt++ {
		r, err := e.reserves(ctx, sc)
		if err != nil {
			lastErr = err
			e.logger.Printf("[trader] sell %s attempt %d/%d: %v", pos.Pool.BaseMint, attempt, e.cfg.MaxSellRetries, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		out := amm.SellQuote(pos.TokenAmount, r, num, den)
		ixs := e.computeBudget()
		ixs = append(ixs,
			amm.SwapBaseIn(sc.keys, sc.baseATA, sc.quoteATA, e.wallet, pos.TokenAmount, amm.MinAmountOut(out, e.cfg.SellSlippageBps)),
			solana.CloseTokenAccount(sc.baseATA, e.wallet, e.wallet),
		)

		res, err := e.submit(ctx, "sell", ixs)
		if res.Signature != "" {
			lastSig = res.Signature
		}
		if err == nil {
			pos.SellTxID = res.Signature
			pos.SellPrice = out
			_ = pos.Advance(domain.StatusSold)
			e.persist(ctx, pos)
			e.untrack(pos)
			e.logger.Printf("[trader] sold %s for %d lamports: %s", pos.Pool.BaseMint, out, res.Signature)
			e.recorder.Trade(ctx, events.SellSuccess, pos.Pool, res.Signature, fmt.Sprintf("sold for %d lamports", out))
			return nil
		}
		lastErr = err
		e.logger.Printf("[trader] sell %s attempt %d/%d: %v", pos.Pool.BaseMint, attempt, e.cfg.MaxSellRetries, err)
		if ctx.Err() != nil {
			break
		}
	}

	_ = pos.Advance(domain.StatusAbandoned)
	e.persist(ctx, pos)
	e.untrack(pos)
	e.recorder.Trade(ctx, events.SellFailed, pos.Pool, lastSig, lastErr.Error())
	return fmt.Errorf("sell %s: %w", pos.Pool.BaseMint, lastErr)
}

// abandon closes the position without selling. It is never retried.
func (e *Engine) abandon(ctx context.Context, pos *domain.TradingPosition, reason string) {
	if err := pos.Advance(domain.StatusAbandoned); err != nil {
		e.logger.Printf("[trader] abandon %s: %v", pos.ID, err)
		return
	}
	e.persist(ctx, pos)
	e.untrack(pos)
	e.logger.Printf("[trader] abandoned %s: %s", pos.Pool.BaseMint, reason)
	e.recorder.Trade(ctx, events.SellAbandoned, pos.Pool, "", reason)
}

// submit fetches a fresh blockhash and lands ixs. A landed transaction that
// failed on chain is reported as an error.
func (e *Engine) submit(ctx context.Context, side string, ixs []solana.Instruction) (executor.Result, error) {
	var bh *solana.Blockhash
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		bh, err = e.chain.GetLatestBlockhash(ctx)
		return err
	})
	if err != nil {
		return executor.Result{}, fmt.Errorf("blockhash: %w", err)
	}

	observability.RecordTradeAttempt(side, string(e.submitter.Strategy()))
	res, err := e.submitter.SignAndSubmit(ctx, ixs, bh)
	if err == nil && !res.Confirmed {
		err = fmt.Errorf("transaction %s failed: %s", res.Signature, res.Err)
	}
	observability.RecordTradeResult(side, err == nil)
	return res, err
}

// computeBudget returns the priority fee instructions for direct submission.
// Bundles pay a tip instead.
func (e *Engine) computeBudget() []solana.Instruction {
	if e.submitter.Strategy() != executor.StrategyDirect {
		return nil
	}
	return []solana.Instruction{
		solana.SetComputeUnitPrice(e.cfg.UnitPrice),
		solana.SetComputeUnitLimit(e.cfg.UnitLimit),
	}
}

func (e *Engine) sizeOK(quote uint64) bool {
	if e.cfg.MinPoolSize > 0 && quote < e.cfg.MinPoolSize {
		return false
	}
	if e.cfg.MaxPoolSize > 0 && quote > e.cfg.MaxPoolSize {
		return false
	}
	return true
}

// prepare resolves pool state, market and token accounts for a pool.
func (e *Engine) prepare(ctx context.Context, pool domain.DetectedPool) (*swapContext, error) {
	if pool.Variant != domain.VariantRaydium {
		return nil, fmt.Errorf("%w: %s", amm.ErrUnsupportedVariant, pool.Variant)
	}
	id, err := solana.ParsePublicKey(pool.PoolID)
	if err != nil {
		return nil, fmt.Errorf("pool id: %w", err)
	}

	state, err := e.poolState(ctx, pool.PoolID)
	if err != nil {
		return nil, err
	}
	market, err := e.market(ctx, state.MarketID)
	if err != nil {
		return nil, err
	}
	keys, err := amm.NewPoolKeys(id, state, market)
	if err != nil {
		return nil, fmt.Errorf("pool keys: %w", err)
	}

	baseATA, err := solana.AssociatedTokenAddress(e.wallet, keys.BaseMint)
	if err != nil {
		return nil, fmt.Errorf("base token account: %w", err)
	}
	quoteATA, err := solana.AssociatedTokenAddress(e.wallet, keys.QuoteMint)
	if err != nil {
		return nil, fmt.Errorf("quote token account: %w", err)
	}
	return &swapContext{state: state, keys: keys, baseATA: baseATA, quoteATA: quoteATA}, nil
}

func (e *Engine) poolState(ctx context.Context, id string) (*amm.LiquidityStateV4, error) {
	if entry, ok := e.pools.Get(id); ok && entry.State != nil {
		return entry.State, nil
	}

	var info *solana.AccountInfo
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		info, err = e.chain.GetAccountInfo(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", id, err)
	}
	if info == nil {
		return nil, fmt.Errorf("pool %s: account not found", id)
	}
	data, err := info.Bytes()
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", id, err)
	}
	state, err := amm.DecodeLiquidityStateV4(data)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", id, err)
	}
	e.pools.Save(id, state)
	return state, nil
}

func (e *Engine) market(ctx context.Context, id solana.PublicKey) (*amm.MarketState, error) {
	key := id.String()
	if m, ok := e.markets.Get(key); ok {
		return m, nil
	}

	var info *solana.AccountInfo
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		info, err = e.chain.GetAccountInfoSlice(ctx, key, amm.MarketEventQueueOffset, amm.MarketKeysSliceLength)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("market %s: %w", key, err)
	}
	if info == nil {
		return nil, fmt.Errorf("market %s: account not found", key)
	}
	data, err := info.Bytes()
	if err != nil {
		return nil, fmt.Errorf("market %s: %w", key, err)
	}
	m, err := amm.DecodeMarketSlice(data)
	if err != nil {
		return nil, fmt.Errorf("market %s: %w", key, err)
	}
	e.markets.Save(key, m)
	return m, nil
}

// reserves reads both vault balances and nets out protocol PnL.
func (e *Engine) reserves(ctx context.Context, sc *swapContext) (amm.Reserves, error) {
	var base, quote *solana.TokenAmount
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		if base, err = e.chain.GetTokenAccountBalance(ctx, sc.keys.BaseVault.String()); err != nil {
			return fmt.Errorf("base vault: %w", err)
		}
		if quote, err = e.chain.GetTokenAccountBalance(ctx, sc.keys.QuoteVault.String()); err != nil {
			return fmt.Errorf("quote vault: %w", err)
		}
		return nil
	})
	if err != nil {
		return amm.Reserves{}, err
	}
	if base == nil || quote == nil {
		return amm.Reserves{}, errors.New("vault balance unavailable")
	}
	return sc.state.EffectiveReserves(base.Amount, quote.Amount), nil
}

// call runs fn through the shared call queue when one is configured.
func (e *Engine) call(ctx context.Context, fn func(context.Context) error) error {
	if e.calls == nil {
		return fn(ctx)
	}
	return e.calls.Do(ctx, fn)
}

func (e *Engine) persist(ctx context.Context, pos *domain.TradingPosition) {
	if e.positions == nil {
		return
	}
	if err := e.positions.Update(ctx, pos); err != nil {
		e.logger.Printf("[trader] update position %s: %v", pos.ID, err)
	}
}

func (e *Engine) track(pos *domain.TradingPosition) {
	e.mu.Lock()
	e.active[pos.ID] = pos
	n := len(e.active)
	e.mu.Unlock()
	observability.UpdatePositionsOpen(n)
}

func (e *Engine) untrack(pos *domain.TradingPosition) {
	e.mu.Lock()
	delete(e.active, pos.ID)
	n := len(e.active)
	e.mu.Unlock()
	observability.UpdatePositionsOpen(n)
}

// unitPrice returns lamports per whole token, 0 when nothing was received.
func unitPrice(lamports, amount uint64, decimals uint8) uint64 {
	if amount == 0 {
		return 0
	}
	p := new(big.Int).SetUint64(lamports)
	p.Mul(p, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	p.Quo(p, new(big.Int).SetUint64(amount))
	if !p.IsUint64() {
		return 0
	}
	return p.Uint64()
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

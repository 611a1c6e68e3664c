// Package config loads sniper settings from a .env file, the environment and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/solana"
)

// Transaction executors.
const (
	ExecutorDefault = "default"
	ExecutorJito    = "jito"
)

// Config holds every runtime setting. SOL amounts are stored in lamports.
type Config struct {
	PrivateKey  string
	RPCEndpoint string
	WSEndpoint  string

	MaxTokensAtTheTime int
	BackfillSlots      int64

	TransactionExecutor string
	CustomFee           uint64

	FilterCheckInterval      time.Duration
	FilterCheckDuration      time.Duration
	ConsecutiveFilterMatches int

	MinPoolSize         uint64
	MaxPoolSize         uint64
	BuyAmount           uint64
	PoolMaxAge          time.Duration
	HoldersTop1MaxRatio float64
	HoldersTop5MaxRatio float64
	MinSocialLinks      int
	RequireLPProtection bool

	BuySlippageBps    int
	SellSlippageBps   int
	MaxPriceImpactBps int

	AutoSell                  bool
	MaxSellRetries            int
	AutoSellDelay             time.Duration
	AutoBuyDelay              time.Duration
	PriceCheckInterval        time.Duration
	PriceCheckDuration        time.Duration
	TakeProfit                uint64 // percent
	StopLoss                  uint64 // percent
	TrailingStopLoss          bool
	SkipSellingIfLostMoreThan uint64 // percent, 0 disables

	UnitLimit     uint32
	UnitPrice     uint64 // micro-lamports per compute unit
	MaxBuyRetries int

	EnabledDexes  []domain.DexVariant
	RPCSpacing    time.Duration
	DedupTTL      time.Duration
	DebounceDelay time.Duration

	JupiterURL    string
	JitoURL       string
	RedisURL      string
	PostgresDSN   string
	ClickhouseDSN string
	MetricsAddr   string
}

// Load reads envPath (a missing file is ignored), applies the environment
// over the defaults and then args over the environment. The result is
// validated.
func Load(envPath string, args []string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envPath, err)
		}
	}

	env := &envReader{}
	cfg := &Config{}
	fs := flag.NewFlagSet("sniper", flag.ContinueOnError)

	fs.StringVar(&cfg.PrivateKey, "private-key", env.String("PRIVATE_KEY", ""), "base58 wallet secret key")
	fs.StringVar(&cfg.RPCEndpoint, "rpc-endpoint", env.String("RPC_ENDPOINT", ""), "Solana JSON-RPC URL")
	fs.StringVar(&cfg.WSEndpoint, "rpc-websocket-endpoint", env.String("RPC_WEBSOCKET_ENDPOINT", ""), "Solana WebSocket URL")

	fs.IntVar(&cfg.MaxTokensAtTheTime, "max-tokens-at-the-time", env.Int("MAX_TOKENS_AT_THE_TIME", 3), "pools processed concurrently")
	fs.Int64Var(&cfg.BackfillSlots, "backfill-slots", int64(env.Int("BACKFILL_SLOTS", 50)), "slots scanned at startup")

	fs.StringVar(&cfg.TransactionExecutor, "transaction-executor", env.String("TRANSACTION_EXECUTOR", ExecutorDefault), "default or jito")
	cfg.CustomFee = env.SOL("CUSTOM_FEE", "0.001")
	fs.Var(solFlag{&cfg.CustomFee}, "custom-fee", "jito tip in SOL")

	fs.DurationVar(&cfg.FilterCheckInterval, "filter-check-interval", env.Duration("FILTER_CHECK_INTERVAL", 3*time.Second), "pause between filter rounds")
	fs.DurationVar(&cfg.FilterCheckDuration, "filter-check-duration", env.Duration("FILTER_CHECK_DURATION", 50*time.Second), "filter window per pool")
	fs.IntVar(&cfg.ConsecutiveFilterMatches, "consecutive-filter-matches", env.Int("CONSECUTIVE_FILTER_MATCHES", 2), "passing rounds required")

	cfg.MinPoolSize = env.SOL("MIN_POOL_SIZE", "80")
	cfg.MaxPoolSize = env.SOL("MAX_POOL_SIZE", "500")
	cfg.BuyAmount = env.SOL("BUY_AMOUNT", "0.1")
	fs.Var(solFlag{&cfg.MinPoolSize}, "min-pool-size", "minimum quote reserve in SOL, 0 disables")
	fs.Var(solFlag{&cfg.MaxPoolSize}, "max-pool-size", "maximum quote reserve in SOL, 0 disables")
	fs.Var(solFlag{&cfg.BuyAmount}, "buy-amount", "SOL spent per buy")
	fs.DurationVar(&cfg.PoolMaxAge, "pool-max-age", env.Duration("POOL_MAX_AGE", 24*time.Hour), "oldest pool accepted")
	fs.Float64Var(&cfg.HoldersTop1MaxRatio, "holders-top1-max-ratio", env.Float("HOLDERS_TOP1_MAX_RATIO", 0.2), "largest holder share limit")
	fs.Float64Var(&cfg.HoldersTop5MaxRatio, "holders-top5-max-ratio", env.Float("HOLDERS_TOP5_MAX_RATIO", 0.35), "top five holders share limit")
	fs.IntVar(&cfg.MinSocialLinks, "min-social-links", env.Int("MIN_SOCIAL_LINKS", 1), "social links required in metadata")
	fs.BoolVar(&cfg.RequireLPProtection, "require-lp-protection", env.Bool("REQUIRE_LP_PROTECTION", false), "require burned or locked LP")

	fs.IntVar(&cfg.BuySlippageBps, "buy-slippage-bps", env.Int("BUY_SLIPPAGE_BPS", 300), "buy slippage in basis points")
	fs.IntVar(&cfg.SellSlippageBps, "sell-slippage-bps", env.Int("SELL_SLIPPAGE_BPS", 300), "sell slippage in basis points")
	fs.IntVar(&cfg.MaxPriceImpactBps, "max-price-impact-bps", env.Int("MAX_PRICE_IMPACT_BPS", 500), "route price impact limit")

	fs.BoolVar(&cfg.AutoSell, "auto-sell", env.Bool("AUTO_SELL", true), "monitor and sell positions")
	fs.IntVar(&cfg.MaxSellRetries, "max-sell-retries", env.Int("MAX_SELL_RETRIES", 5), "sell attempts")
	fs.DurationVar(&cfg.AutoSellDelay, "auto-sell-delay", env.Duration("AUTO_SELL_DELAY", 0), "wait before monitoring")
	fs.DurationVar(&cfg.AutoBuyDelay, "auto-buy-delay", env.Duration("AUTO_BUY_DELAY", 0), "wait before buying")
	fs.DurationVar(&cfg.PriceCheckInterval, "price-check-interval", env.Duration("PRICE_CHECK_INTERVAL", 2*time.Second), "pause between price samples")
	fs.DurationVar(&cfg.PriceCheckDuration, "price-check-duration", env.Duration("PRICE_CHECK_DURATION", 200*time.Second), "monitoring window")
	fs.Uint64Var(&cfg.TakeProfit, "take-profit", env.Uint("TAKE_PROFIT", 50), "take profit percent")
	fs.Uint64Var(&cfg.StopLoss, "stop-loss", env.Uint("STOP_LOSS", 30), "stop loss percent")
	fs.BoolVar(&cfg.TrailingStopLoss, "trailing-stop-loss", env.Bool("TRAILING_STOP_LOSS", false), "ratchet the stop loss upward")
	fs.Uint64Var(&cfg.SkipSellingIfLostMoreThan, "skip-selling-if-lost-more-than", env.Uint("SKIP_SELLING_IF_LOST_MORE_THAN", 0), "abandon below this percent of cost, 0 disables")

	var unitLimit uint64
	fs.Uint64Var(&unitLimit, "unit-limit", env.Uint("UNIT_LIMIT", 200000), "compute unit limit")
	fs.Uint64Var(&cfg.UnitPrice, "unit-price", env.Uint("UNIT_PRICE", 1000000), "compute unit price in micro-lamports")
	fs.IntVar(&cfg.MaxBuyRetries, "max-buy-retries", env.Int("MAX_BUY_RETRIES", 3), "buy attempts")

	var dexes string
	fs.StringVar(&dexes, "enabled-dexes", env.String("ENABLED_DEXES", "raydium,meteora,pumpswap"), "comma separated DEX list")
	fs.DurationVar(&cfg.RPCSpacing, "rpc-spacing", env.Duration("RPC_SPACING", time.Second), "minimum gap between queued RPC calls")
	fs.DurationVar(&cfg.DedupTTL, "dedup-ttl", env.Duration("DEDUP_TTL", 3*time.Minute), "seen-set retention")
	fs.DurationVar(&cfg.DebounceDelay, "debounce-delay", env.Duration("DEBOUNCE_DELAY", time.Second), "per pool debounce")

	fs.StringVar(&cfg.JupiterURL, "jupiter-url", env.String("JUPITER_URL", "https://quote-api.jup.ag"), "Jupiter quote API")
	fs.StringVar(&cfg.JitoURL, "jito-url", env.String("JITO_URL", ""), "block engine URL, empty for mainnet")
	fs.StringVar(&cfg.RedisURL, "redis-url", env.String("REDIS_URL", ""), "shared seen set, empty keeps it in memory")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", env.String("POSTGRES_DSN", ""), "position and decision store")
	fs.StringVar(&cfg.ClickhouseDSN, "clickhouse-dsn", env.String("CLICKHOUSE_DSN", ""), "decision analytics sink")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", env.String("METRICS_ADDR", ":9090"), "metrics listen address, empty disables")

	if err := env.Err(); err != nil {
		return nil, err
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if unitLimit > uint64(^uint32(0)) {
		return nil, fmt.Errorf("unit-limit %d out of range", unitLimit)
	}
	cfg.UnitLimit = uint32(unitLimit)

	parsed, err := ParseDexes(dexes)
	if err != nil {
		return nil, err
	}
	cfg.EnabledDexes = parsed

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.PrivateKey == "" {
		add("PRIVATE_KEY is required")
	} else if _, err := solana.KeypairFromBase58(c.PrivateKey); err != nil {
		add("PRIVATE_KEY: %v", err)
	}
	if err := checkURL(c.RPCEndpoint, "http", "https"); err != nil {
		add("RPC_ENDPOINT: %v", err)
	}
	if err := checkURL(c.WSEndpoint, "ws", "wss"); err != nil {
		add("RPC_WEBSOCKET_ENDPOINT: %v", err)
	}

	if c.MaxTokensAtTheTime < 1 {
		add("MAX_TOKENS_AT_THE_TIME must be at least 1")
	}
	if c.BackfillSlots < 0 {
		add("BACKFILL_SLOTS must not be negative")
	}
	switch c.TransactionExecutor {
	case ExecutorDefault, ExecutorJito:
	default:
		add("TRANSACTION_EXECUTOR must be %q or %q, got %q", ExecutorDefault, ExecutorJito, c.TransactionExecutor)
	}
	if c.TransactionExecutor == ExecutorJito && c.CustomFee == 0 {
		add("CUSTOM_FEE must be positive with the jito executor")
	}

	if c.FilterCheckInterval < 0 {
		add("FILTER_CHECK_INTERVAL must not be negative")
	}
	if c.FilterCheckDuration <= 0 {
		add("FILTER_CHECK_DURATION must be positive")
	}
	if c.ConsecutiveFilterMatches < 1 {
		add("CONSECUTIVE_FILTER_MATCHES must be at least 1")
	}

	if c.MinPoolSize > 0 && c.MaxPoolSize > 0 && c.MinPoolSize > c.MaxPoolSize {
		add("MIN_POOL_SIZE exceeds MAX_POOL_SIZE")
	}
	if c.BuyAmount == 0 {
		add("BUY_AMOUNT must be positive")
	}
	if c.PoolMaxAge < 0 {
		add("POOL_MAX_AGE must not be negative")
	}
	if c.HoldersTop1MaxRatio < 0 || c.HoldersTop1MaxRatio > 1 {
		add("HOLDERS_TOP1_MAX_RATIO must be within [0, 1]")
	}
	if c.HoldersTop5MaxRatio < 0 || c.HoldersTop5MaxRatio > 1 {
		add("HOLDERS_TOP5_MAX_RATIO must be within [0, 1]")
	}
	if c.MinSocialLinks < 0 {
		add("MIN_SOCIAL_LINKS must not be negative")
	}

	for _, b := range []struct {
		name string
		bps  int
	}{
		{"BUY_SLIPPAGE_BPS", c.BuySlippageBps},
		{"SELL_SLIPPAGE_BPS", c.SellSlippageBps},
		{"MAX_PRICE_IMPACT_BPS", c.MaxPriceImpactBps},
	} {
		if b.bps < 0 || b.bps > 10000 {
			add("%s must be within [0, 10000]", b.name)
		}
	}

	if c.MaxSellRetries < 1 {
		add("MAX_SELL_RETRIES must be at least 1")
	}
	if c.MaxBuyRetries < 1 {
		add("MAX_BUY_RETRIES must be at least 1")
	}
	if c.AutoSellDelay < 0 || c.AutoBuyDelay < 0 {
		add("AUTO_SELL_DELAY and AUTO_BUY_DELAY must not be negative")
	}
	if c.PriceCheckInterval < 0 || c.PriceCheckDuration < 0 {
		add("PRICE_CHECK_INTERVAL and PRICE_CHECK_DURATION must not be negative")
	}
	if c.StopLoss > 100 {
		add("STOP_LOSS must be at most 100")
	}
	if c.SkipSellingIfLostMoreThan > 100 {
		add("SKIP_SELLING_IF_LOST_MORE_THAN must be at most 100")
	}
	if c.UnitLimit == 0 {
		add("UNIT_LIMIT must be positive")
	}

	if len(c.EnabledDexes) == 0 {
		add("ENABLED_DEXES must name at least one DEX")
	}
	if c.RPCSpacing <= 0 {
		add("RPC_SPACING must be positive")
	}
	if c.DedupTTL <= 0 {
		add("DEDUP_TTL must be positive")
	}
	if c.DebounceDelay < 0 {
		add("DEBOUNCE_DELAY must not be negative")
	}
	if err := checkURL(c.JupiterURL, "http", "https"); err != nil {
		add("JUPITER_URL: %v", err)
	}
	if c.JitoURL != "" {
		if err := checkURL(c.JitoURL, "http", "https"); err != nil {
			add("JITO_URL: %v", err)
		}
	}

	return errors.Join(errs...)
}

// ParseDexes parses a comma separated DEX list. Duplicates collapse.
func ParseDexes(s string) ([]domain.DexVariant, error) {
	var out []domain.DexVariant
	seen := make(map[domain.DexVariant]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		v, ok := domain.ParseDexVariant(part)
		if !ok {
			return nil, fmt.Errorf("unknown dex %q", part)
		}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out, nil
}

// ParseSOL converts a decimal SOL amount to lamports. Fractions below one
// lamport are rejected.
func ParseSOL(s string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid SOL amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("SOL amount %q is negative", s)
	}
	l := d.Shift(9)
	if !l.Equal(l.Truncate(0)) {
		return 0, fmt.Errorf("SOL amount %q is finer than one lamport", s)
	}
	n := l.BigInt()
	if !n.IsUint64() {
		return 0, fmt.Errorf("SOL amount %q out of range", s)
	}
	return n.Uint64(), nil
}

// FormatSOL renders lamports as a SOL amount.
func FormatSOL(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9).String()
}

func checkURL(raw string, schemes ...string) error {
	if raw == "" {
		return errors.New("required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%q must be a %s URL", raw, strings.Join(schemes, " or "))
}

// solFlag is a flag.Value holding lamports, set from a SOL amount.
type solFlag struct{ lamports *uint64 }

func (f solFlag) String() string {
	if f.lamports == nil {
		return ""
	}
	return FormatSOL(*f.lamports)
}

func (f solFlag) Set(s string) error {
	v, err := ParseSOL(s)
	if err != nil {
		return err
	}
	*f.lamports = v
	return nil
}

// envReader reads typed environment variables and remembers parse failures
// so a bad value is reported instead of silently replaced by its default.
type envReader struct {
	errs []error
}

func (e *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(key, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, value, err))
}

func (e *envReader) String(key, def string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return def
}

func (e *envReader) Int(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *envReader) Uint(key string, def uint64) uint64 {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *envReader) Float(key string, def float64) float64 {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return f
}

func (e *envReader) Bool(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return b
}

// Duration accepts Go durations ("3s") and bare integers as milliseconds.
func (e *envReader) Duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return d
}

func (e *envReader) SOL(key, def string) uint64 {
	v, ok := e.lookup(key)
	if !ok {
		v = def
	}
	l, err := ParseSOL(v)
	if err != nil {
		e.fail(key, v, err)
		return 0
	}
	return l
}

func (e *envReader) Err() error {
	return errors.Join(e.errs...)
}

package events

// Code is a decision-trail event code. The set is closed.
type Code string

// Detection.
const (
	DetectedPool  Code = "DETECTED_POOL"
	ListenerReady Code = "LISTENER_READY"
)

// Skip reasons, one per rejecting filter.
const (
	SkipRouteNotFound       Code = "SKIP_ROUTE_NOT_FOUND"
	SkipImpactGtLimit       Code = "SKIP_IMPACT_GT_LIMIT"
	SkipNoLock15m           Code = "SKIP_NO_LOCK_15M"
	SkipBurnTooLow          Code = "SKIP_BURN_TOO_LOW"
	SkipMutable             Code = "SKIP_MUTABLE"
	SkipRenounced           Code = "SKIP_RENOUNCED"
	SkipNoSocials           Code = "SKIP_NO_SOCIALS"
	SkipNoImage             Code = "SKIP_NO_IMAGE"
	SkipPoolSize            Code = "SKIP_POOL_SIZE"
	SkipPoolAge             Code = "SKIP_POOL_AGE"
	SkipHolderConcentration Code = "SKIP_HOLDER_CONCENTRATION"
	SkipToken2022Extension  Code = "SKIP_TOKEN2022_EXTENSION"
)

// Buy.
const (
	BuySuccess    Code = "BUY_SUCCESS"
	BuyFailed     Code = "BUY_FAILED"
	JupTxSendFail Code = "JUP_TX_SEND_FAIL"
)

// Sell.
const (
	SellSuccess    Code = "SELL_SUCCESS"
	SellFailed     Code = "SELL_FAILED"
	SellStopLoss   Code = "SELL_STOP_LOSS"
	SellTakeProfit Code = "SELL_TAKE_PROFIT"
	SellTimeout    Code = "SELL_TIMEOUT"
	SellAbandoned  Code = "SELL_ABANDONED"
)

// LP protection.
const (
	LPLockOK      Code = "LP_LOCK_OK"
	LPBurnOK      Code = "LP_BURN_OK"
	LPCheckFailed Code = "LP_CHECK_FAILED"
)

// Pipeline progress.
const (
	WaitingConsecutiveMatches Code = "WAITING_CONSECUTIVE_MATCHES"
	ListenerStarted           Code = "LISTENER_STARTED"
	ListenerStopped           Code = "LISTENER_STOPPED"
	PoolProcessingStart       Code = "POOL_PROCESSING_START"
	PoolProcessingEnd         Code = "POOL_PROCESSING_END"
	PoolAccepted              Code = "POOL_ACCEPTED"
	PoolRejected              Code = "POOL_REJECTED"
	PoolDuplicate             Code = "POOL_DUPLICATE"
	FilterStart               Code = "FILTER_START"
	FilterPass                Code = "FILTER_PASS"
	FilterFail                Code = "FILTER_FAIL"
)

var allCodes = []Code{
	DetectedPool, ListenerReady,
	SkipRouteNotFound, SkipImpactGtLimit, SkipNoLock15m, SkipBurnTooLow, SkipMutable,
	SkipRenounced, SkipNoSocials, SkipNoImage, SkipPoolSize, SkipPoolAge,
	SkipHolderConcentration, SkipToken2022Extension,
	BuySuccess, BuyFailed, JupTxSendFail,
	SellSuccess, SellFailed, SellStopLoss, SellTakeProfit, SellTimeout, SellAbandoned,
	LPLockOK, LPBurnOK, LPCheckFailed,
	WaitingConsecutiveMatches, ListenerStarted, ListenerStopped,
	PoolProcessingStart, PoolProcessingEnd, PoolAccepted, PoolRejected, PoolDuplicate,
	FilterStart, FilterPass, FilterFail,
}

var known = func() map[Code]bool {
	m := make(map[Code]bool, len(allCodes))
	for _, c := range allCodes {
		m[c] = true
	}
	return m
}()

// IsValid reports whether c belongs to the taxonomy.
func (c Code) IsValid() bool {
	return known[c]
}

// String returns the wire form.
func (c Code) String() string {
	return string(c)
}

// AllCodes returns every code in declaration order.
func AllCodes() []Code {
	out := make([]Code, len(allCodes))
	copy(out, allCodes)
	return out
}

package trader

import "math/big"

// Signal is the outcome of one price sample.
type Signal int

const (
	Hold Signal = iota
	SignalStopLoss
	SignalTakeProfit
	SignalAbandon
	SignalTimeout
	SignalImmediate
)

// String returns the metric label of the signal.
func (s Signal) String() string {
	switch s {
	case SignalStopLoss:
		return "stop_loss"
	case SignalTakeProfit:
		return "take_profit"
	case SignalAbandon:
		return "abandon"
	case SignalTimeout:
		return "timeout"
	case SignalImmediate:
		return "immediate"
	}
	return "hold"
}

// ExitRules are the position exit thresholds, in whole percent of the quote
// amount spent.
type ExitRules struct {
	TakeProfit uint64
	StopLoss   uint64
	// Trailing ratchets the stop loss up as the value rises.
	Trailing bool
	// SkipIfLostMoreThan abandons the position when its value drops below
	// this percent of the spend. 0 disables.
	SkipIfLostMoreThan uint64
}

// Monitor evaluates price samples of one position.
type Monitor struct {
	rules      ExitRules
	takeProfit uint64
	stopLoss   uint64
	initialSL  uint64
	abandonAt  uint64
}

// NewMonitor creates a monitor for a position that cost quoteAmount.
func NewMonitor(quoteAmount uint64, rules ExitRules) *Monitor {
	sl := sub(quoteAmount, percent(quoteAmount, rules.StopLoss))
	m := &Monitor{
		rules:      rules,
		takeProfit: quoteAmount + percent(quoteAmount, rules.TakeProfit),
		stopLoss:   sl,
		initialSL:  sl,
	}
	if rules.SkipIfLostMoreThan > 0 {
		m.abandonAt = percent(quoteAmount, rules.SkipIfLostMoreThan)
	}
	return m
}

// TakeProfit returns the take-profit threshold.
func (m *Monitor) TakeProfit() uint64 { return m.takeProfit }

// StopLoss returns the current stop-loss threshold.
func (m *Monitor) StopLoss() uint64 { return m.stopLoss }

// Observe evaluates one sample of the position value. Stop loss wins over
// take profit, and abandonment is only considered for a sample that hit
// neither.
func (m *Monitor) Observe(value uint64) Signal {
	if value < m.stopLoss {
		return SignalStopLoss
	}
	if value > m.takeProfit {
		m.stopLoss = m.initialSL
		return SignalTakeProfit
	}
	if m.rules.Trailing {
		if candidate := sub(value, percent(value, m.rules.StopLoss)); candidate > m.stopLoss {
			m.stopLoss = candidate
		}
	}
	if m.abandonAt > 0 && value < m.abandonAt {
		return SignalAbandon
	}
	return Hold
}

// percent returns v*pct/100, floored.
func percent(v, pct uint64) uint64 {
	r := new(big.Int).SetUint64(v)
	r.Mul(r, new(big.Int).SetUint64(pct))
	r.Quo(r, big.NewInt(100))
	if !r.IsUint64() {
		return ^uint64(0)
	}
	return r.Uint64()
}

func sub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

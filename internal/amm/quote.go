package amm

import (
	"math/big"
)

// Default v4 swap fee when the pool account carries none.
const (
	DefaultFeeNumerator   = 25
	DefaultFeeDenominator = 10000
)

// BpsDenominator is 100%.
const BpsDenominator = 10000

// Reserves is a snapshot of pool liquidity in raw units.
type Reserves struct {
	Base  uint64
	Quote uint64
}

// Fee returns the swap fee of a pool state, falling back to the default.
func (s *LiquidityStateV4) Fee() (numerator, denominator uint64) {
	if s == nil || s.SwapFeeDenominator == 0 {
		return DefaultFeeNumerator, DefaultFeeDenominator
	}
	return s.SwapFeeNumerator, s.SwapFeeDenominator
}

// EffectiveReserves subtracts the PnL owed to the protocol from vault balances.
func (s *LiquidityStateV4) EffectiveReserves(baseVault, quoteVault uint64) Reserves {
	return Reserves{
		Base:  saturatingSub(baseVault, s.BaseNeedTakePnl),
		Quote: saturatingSub(quoteVault, s.QuoteNeedTakePnl),
	}
}

// ComputeAmountOut returns the constant-product output for amountIn after fees.
// All arithmetic is integer and floors.
func ComputeAmountOut(amountIn, reserveIn, reserveOut, feeNumerator, feeDenominator uint64) uint64 {
	if amountIn == 0 || reserveIn == 0 || reserveOut == 0 || feeDenominator == 0 {
		return 0
	}

	in := new(big.Int).SetUint64(amountIn)
	fee := new(big.Int).Mul(in, new(big.Int).SetUint64(feeNumerator))
	fee.Quo(fee, new(big.Int).SetUint64(feeDenominator))
	in.Sub(in, fee)

	num := new(big.Int).Mul(in, new(big.Int).SetUint64(reserveOut))
	den := new(big.Int).Add(new(big.Int).SetUint64(reserveIn), in)
	out := num.Quo(num, den)
	if !out.IsUint64() {
		return 0
	}
	return out.Uint64()
}

// MinAmountOut applies slippage in basis points to amountOut.
func MinAmountOut(amountOut uint64, slippageBps uint64) uint64 {
	if slippageBps >= BpsDenominator {
		return 0
	}
	v := new(big.Int).SetUint64(amountOut)
	v.Mul(v, new(big.Int).SetUint64(BpsDenominator-slippageBps))
	v.Quo(v, big.NewInt(BpsDenominator))
	return v.Uint64()
}

// BuyQuote returns the base tokens received for quoteIn.
func BuyQuote(quoteIn uint64, r Reserves, feeNum, feeDen uint64) uint64 {
	return ComputeAmountOut(quoteIn, r.Quote, r.Base, feeNum, feeDen)
}

// SellQuote returns the quote received for baseIn.
func SellQuote(baseIn uint64, r Reserves, feeNum, feeDen uint64) uint64 {
	return ComputeAmountOut(baseIn, r.Base, r.Quote, feeNum, feeDen)
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

package amm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/solana"
)

// Account sizes used to recognise pool accounts.
const (
	RaydiumV4StateSize     = 752
	RaydiumV4AltStateSize  = 2208
	MeteoraPoolSize        = 952
	PumpSwapPoolSize       = 150
	MarketStateV3Size      = 388
	MarketKeysSliceLength  = 3 * solana.PublicKeySize
	MarketEventQueueOffset = 253
)

// LIQUIDITY_STATE_V4 field offsets.
const (
	offBaseDecimal      = 32
	offQuoteDecimal     = 40
	offSwapFeeNum       = 176
	offSwapFeeDen       = 184
	offBaseNeedTakePnl  = 192
	offQuoteNeedTakePnl = 200
	offPoolOpenTime     = 224
	offBaseVault        = 336
	offQuoteVault       = 368
	offBaseMint         = 400
	offQuoteMint        = 432
	offLPMint           = 464
	offOpenOrders       = 496
	offMarketID         = 528
	offMarketProgramID  = 560
	offTargetOrders     = 592
)

// PumpSwap pool field offsets (after the 8 byte discriminator).
const (
	offPumpBump       = 8
	offPumpIndex      = 9
	offPumpCreator    = 11
	offPumpBaseMint   = 43
	offPumpQuoteMint  = 75
	offPumpLPMint     = 107
	offPumpBaseVault  = 139
	offPumpQuoteVault = 171
	offPumpLPSupply   = 203
)

// ErrShortAccount is returned when account data is smaller than its layout.
var ErrShortAccount = errors.New("account data too short")

// ErrUnsupportedVariant is returned for DEX variants without an on-chain layout.
var ErrUnsupportedVariant = errors.New("unsupported dex variant")

// LiquidityStateV4 is the subset of a Raydium AMM v4 pool account used for swaps.
type LiquidityStateV4 struct {
	BaseDecimal        uint64
	QuoteDecimal       uint64
	SwapFeeNumerator   uint64
	SwapFeeDenominator uint64
	BaseNeedTakePnl    uint64
	QuoteNeedTakePnl   uint64
	PoolOpenTime       uint64
	BaseVault          solana.PublicKey
	QuoteVault         solana.PublicKey
	BaseMint           solana.PublicKey
	QuoteMint          solana.PublicKey
	LPMint             solana.PublicKey
	OpenOrders         solana.PublicKey
	MarketID           solana.PublicKey
	MarketProgramID    solana.PublicKey
	TargetOrders       solana.PublicKey
}

// DecodeLiquidityStateV4 decodes a Raydium AMM v4 pool account.
func DecodeLiquidityStateV4(data []byte) (*LiquidityStateV4, error) {
	if len(data) < RaydiumV4StateSize {
		return nil, fmt.Errorf("raydium pool: %w (%d bytes)", ErrShortAccount, len(data))
	}

	u64 := func(off int) uint64 { return binary.LittleEndian.Uint64(data[off:]) }
	key := func(off int) solana.PublicKey {
		pk, _ := solana.PublicKeyFromBytes(data, off)
		return pk
	}

	return &LiquidityStateV4{
		BaseDecimal:        u64(offBaseDecimal),
		QuoteDecimal:       u64(offQuoteDecimal),
		SwapFeeNumerator:   u64(offSwapFeeNum),
		SwapFeeDenominator: u64(offSwapFeeDen),
		BaseNeedTakePnl:    u64(offBaseNeedTakePnl),
		QuoteNeedTakePnl:   u64(offQuoteNeedTakePnl),
		PoolOpenTime:       u64(offPoolOpenTime),
		BaseVault:          key(offBaseVault),
		QuoteVault:         key(offQuoteVault),
		BaseMint:           key(offBaseMint),
		QuoteMint:          key(offQuoteMint),
		LPMint:             key(offLPMint),
		OpenOrders:         key(offOpenOrders),
		MarketID:           key(offMarketID),
		MarketProgramID:    key(offMarketProgramID),
		TargetOrders:       key(offTargetOrders),
	}, nil
}

// MarketState holds the OpenBook market accounts a swap needs.
type MarketState struct {
	EventQueue solana.PublicKey
	Bids       solana.PublicKey
	Asks       solana.PublicKey
}

// DecodeMarketSlice decodes the 96 byte slice starting at MarketEventQueueOffset.
func DecodeMarketSlice(data []byte) (*MarketState, error) {
	if len(data) < MarketKeysSliceLength {
		return nil, fmt.Errorf("market slice: %w (%d bytes)", ErrShortAccount, len(data))
	}
	m := &MarketState{}
	m.EventQueue, _ = solana.PublicKeyFromBytes(data, 0)
	m.Bids, _ = solana.PublicKeyFromBytes(data, 32)
	m.Asks, _ = solana.PublicKeyFromBytes(data, 64)
	return m, nil
}

// DecodeMarketState decodes a full OpenBook market v3 account.
func DecodeMarketState(data []byte) (*MarketState, error) {
	if len(data) < MarketEventQueueOffset+MarketKeysSliceLength {
		return nil, fmt.Errorf("market: %w (%d bytes)", ErrShortAccount, len(data))
	}
	return DecodeMarketSlice(data[MarketEventQueueOffset:])
}

// PumpSwapPool is a PumpSwap AMM pool account.
type PumpSwapPool struct {
	Bump       uint8
	Index      uint16
	Creator    solana.PublicKey
	BaseMint   solana.PublicKey
	QuoteMint  solana.PublicKey
	LPMint     solana.PublicKey
	BaseVault  solana.PublicKey
	QuoteVault solana.PublicKey
	LPSupply   uint64
}

// DecodePumpSwapPool decodes a PumpSwap pool account.
func DecodePumpSwapPool(data []byte) (*PumpSwapPool, error) {
	if len(data) < offPumpLPSupply+8 {
		return nil, fmt.Errorf("pumpswap pool: %w (%d bytes)", ErrShortAccount, len(data))
	}
	p := &PumpSwapPool{
		Bump:     data[offPumpBump],
		Index:    binary.LittleEndian.Uint16(data[offPumpIndex:]),
		LPSupply: binary.LittleEndian.Uint64(data[offPumpLPSupply:]),
	}
	p.Creator, _ = solana.PublicKeyFromBytes(data, offPumpCreator)
	p.BaseMint, _ = solana.PublicKeyFromBytes(data, offPumpBaseMint)
	p.QuoteMint, _ = solana.PublicKeyFromBytes(data, offPumpQuoteMint)
	p.LPMint, _ = solana.PublicKeyFromBytes(data, offPumpLPMint)
	p.BaseVault, _ = solana.PublicKeyFromBytes(data, offPumpBaseVault)
	p.QuoteVault, _ = solana.PublicKeyFromBytes(data, offPumpQuoteVault)
	return p, nil
}

// QuoteVault returns the quote reserve token account of a pool account.
func QuoteVault(variant domain.DexVariant, data []byte) (solana.PublicKey, error) {
	switch variant {
	case domain.VariantRaydium:
		state, err := DecodeLiquidityStateV4(data)
		if err != nil {
			return solana.PublicKey{}, err
		}
		return state.QuoteVault, nil
	case domain.VariantPumpSwap:
		pool, err := DecodePumpSwapPool(data)
		if err != nil {
			return solana.PublicKey{}, err
		}
		return pool.QuoteVault, nil
	default:
		return solana.PublicKey{}, fmt.Errorf("%w: %s", ErrUnsupportedVariant, variant)
	}
}

// LPMint returns the LP mint recorded in a pool account.
func LPMint(variant domain.DexVariant, data []byte) (solana.PublicKey, error) {
	switch variant {
	case domain.VariantRaydium:
		state, err := DecodeLiquidityStateV4(data)
		if err != nil {
			return solana.PublicKey{}, err
		}
		return state.LPMint, nil
	case domain.VariantPumpSwap:
		pool, err := DecodePumpSwapPool(data)
		if err != nil {
			return solana.PublicKey{}, err
		}
		return pool.LPMint, nil
	default:
		return solana.PublicKey{}, fmt.Errorf("%w: %s", ErrUnsupportedVariant, variant)
	}
}

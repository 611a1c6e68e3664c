package amm

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/solana"
)

func testKey(b byte) solana.PublicKey {
	var pk solana.PublicKey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func raydiumAccount() []byte {
	data := make([]byte, RaydiumV4StateSize)
	binary.LittleEndian.PutUint64(data[offBaseDecimal:], 6)
	binary.LittleEndian.PutUint64(data[offQuoteDecimal:], 9)
	binary.LittleEndian.PutUint64(data[offSwapFeeNum:], 25)
	binary.LittleEndian.PutUint64(data[offSwapFeeDen:], 10000)
	binary.LittleEndian.PutUint64(data[offQuoteNeedTakePnl:], 500)
	put := func(off int, b byte) {
		k := testKey(b)
		copy(data[off:], k[:])
	}
	put(offBaseVault, 1)
	put(offQuoteVault, 2)
	put(offBaseMint, 3)
	wsol := solana.MustPublicKey(domain.WSOLMint)
	copy(data[offQuoteMint:], wsol[:])
	put(offLPMint, 5)
	put(offOpenOrders, 6)
	put(offMarketID, 7)
	openbook := solana.MustPublicKey(domain.OpenBookProgramID)
	copy(data[offMarketProgramID:], openbook[:])
	put(offTargetOrders, 9)
	return data
}

func TestDecodeLiquidityStateV4(t *testing.T) {
	state, err := DecodeLiquidityStateV4(raydiumAccount())
	require.NoError(t, err)

	assert.Equal(t, uint64(6), state.BaseDecimal)
	assert.Equal(t, uint64(9), state.QuoteDecimal)
	assert.Equal(t, testKey(1), state.BaseVault)
	assert.Equal(t, testKey(2), state.QuoteVault)
	assert.Equal(t, testKey(3), state.BaseMint)
	assert.Equal(t, domain.WSOLMint, state.QuoteMint.String())
	assert.Equal(t, testKey(5), state.LPMint)
	assert.Equal(t, testKey(7), state.MarketID)
	assert.Equal(t, testKey(9), state.TargetOrders)

	num, den := state.Fee()
	assert.Equal(t, uint64(25), num)
	assert.Equal(t, uint64(10000), den)

	r := state.EffectiveReserves(1000, 400)
	assert.Equal(t, uint64(1000), r.Base)
	assert.Equal(t, uint64(0), r.Quote, "pnl larger than vault saturates at zero")
}

func TestDecodeLiquidityStateV4_Short(t *testing.T) {
	_, err := DecodeLiquidityStateV4(make([]byte, 100))
	assert.ErrorIs(t, err, ErrShortAccount)
}

func TestDecodeMarket(t *testing.T) {
	full := make([]byte, MarketStateV3Size)
	copy(full[MarketEventQueueOffset:], bytesOf(testKey(1)))
	copy(full[MarketEventQueueOffset+32:], bytesOf(testKey(2)))
	copy(full[MarketEventQueueOffset+64:], bytesOf(testKey(3)))

	m, err := DecodeMarketState(full)
	require.NoError(t, err)
	assert.Equal(t, testKey(1), m.EventQueue)
	assert.Equal(t, testKey(2), m.Bids)
	assert.Equal(t, testKey(3), m.Asks)

	slice, err := DecodeMarketSlice(full[MarketEventQueueOffset : MarketEventQueueOffset+MarketKeysSliceLength])
	require.NoError(t, err)
	assert.Equal(t, m, slice)

	_, err = DecodeMarketSlice(make([]byte, 95))
	assert.ErrorIs(t, err, ErrShortAccount)
}

func bytesOf(pk solana.PublicKey) []byte {
	return pk[:]
}

func TestDecodePumpSwapPool(t *testing.T) {
	data := make([]byte, PumpSwapPoolSize)
	data[offPumpBump] = 254
	binary.LittleEndian.PutUint16(data[offPumpIndex:], 3)
	copy(data[offPumpBaseMint:], bytesOf(testKey(4)))
	copy(data[offPumpQuoteMint:], bytesOf(solana.MustPublicKey(domain.WSOLMint)))
	copy(data[offPumpQuoteVault:], bytesOf(testKey(8)))
	binary.LittleEndian.PutUint64(data[offPumpLPSupply:], 42)

	pool, err := DecodePumpSwapPool(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(254), pool.Bump)
	assert.Equal(t, uint16(3), pool.Index)
	assert.Equal(t, testKey(4), pool.BaseMint)
	assert.Equal(t, uint64(42), pool.LPSupply)

	vault, err := QuoteVault(domain.VariantPumpSwap, data)
	require.NoError(t, err)
	assert.Equal(t, testKey(8), vault)

	_, err = QuoteVault(domain.VariantMeteora, data)
	assert.ErrorIs(t, err, ErrUnsupportedVariant)
}

func TestNewPoolKeys(t *testing.T) {
	state, err := DecodeLiquidityStateV4(raydiumAccount())
	require.NoError(t, err)

	keys, err := NewPoolKeys(testKey(11), state, &MarketState{EventQueue: testKey(12), Bids: testKey(13), Asks: testKey(14)})
	require.NoError(t, err)

	assert.Equal(t, "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1", keys.Authority.String())
	assert.Equal(t, uint8(6), keys.BaseDecimals)
	assert.Equal(t, keys.BaseVault, keys.MarketBaseVault)
	assert.False(t, keys.MarketAuthority.IsZero())

	again, err := MarketAuthority(state.MarketProgramID, state.MarketID)
	require.NoError(t, err)
	assert.Equal(t, keys.MarketAuthority, again)

	_, err = NewPoolKeys(testKey(11), nil, nil)
	assert.Error(t, err)
}

func TestSwapBaseIn(t *testing.T) {
	state, err := DecodeLiquidityStateV4(raydiumAccount())
	require.NoError(t, err)
	keys, err := NewPoolKeys(testKey(11), state, &MarketState{})
	require.NoError(t, err)

	owner := testKey(20)
	ix := SwapBaseIn(keys, testKey(21), testKey(22), owner, 1_000, 900)

	require.Len(t, ix.Accounts, 18)
	assert.Equal(t, byte(9), ix.Data[0])
	assert.Equal(t, uint64(1_000), binary.LittleEndian.Uint64(ix.Data[1:]))
	assert.Equal(t, uint64(900), binary.LittleEndian.Uint64(ix.Data[9:]))
	assert.Equal(t, keys.ID, ix.Accounts[1].PublicKey)
	assert.Equal(t, owner, ix.Accounts[17].PublicKey)
	assert.True(t, ix.Accounts[17].IsSigner)
	assert.Equal(t, solana.MustPublicKey(domain.RaydiumAMMV4), ix.ProgramID)
}

func TestComputeAmountOut(t *testing.T) {
	out := ComputeAmountOut(1_000_000_000, 100_000_000_000, 1_000_000_000_000_000, 25, 10000)
	assert.Equal(t, uint64(9_876_482_091_140), out)

	assert.Zero(t, ComputeAmountOut(0, 1, 1, 25, 10000))
	assert.Zero(t, ComputeAmountOut(1, 0, 1, 25, 10000))
	assert.Zero(t, ComputeAmountOut(1, 1, 1, 25, 0))

	r := Reserves{Base: 1_000_000_000_000_000, Quote: 100_000_000_000}
	assert.Equal(t, out, BuyQuote(1_000_000_000, r, 25, 10000))
	assert.Less(t, SellQuote(out, Reserves{Base: r.Base - out, Quote: r.Quote + 1_000_000_000}, 25, 10000), uint64(1_000_000_000))
}

func TestMinAmountOut(t *testing.T) {
	assert.Equal(t, uint64(9_580_246), MinAmountOut(9_876_543, 300))
	assert.Equal(t, uint64(100), MinAmountOut(100, 0))
	assert.Zero(t, MinAmountOut(100, 10000))
}

package amm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/solana"
)

// PoolKeys is every account a Raydium v4 swap touches.
type PoolKeys struct {
	ID               solana.PublicKey
	BaseMint         solana.PublicKey
	QuoteMint        solana.PublicKey
	LPMint           solana.PublicKey
	BaseDecimals     uint8
	QuoteDecimals    uint8
	ProgramID        solana.PublicKey
	Authority        solana.PublicKey
	OpenOrders       solana.PublicKey
	TargetOrders     solana.PublicKey
	BaseVault        solana.PublicKey
	QuoteVault       solana.PublicKey
	MarketProgramID  solana.PublicKey
	MarketID         solana.PublicKey
	MarketAuthority  solana.PublicKey
	MarketBaseVault  solana.PublicKey
	MarketQuoteVault solana.PublicKey
	MarketBids       solana.PublicKey
	MarketAsks       solana.PublicKey
	MarketEventQueue solana.PublicKey
}

// NewPoolKeys assembles swap keys from a decoded pool state and market.
// The pool vaults stand in for the market vaults, which the v4 program does
// not check on swap.
func NewPoolKeys(id solana.PublicKey, state *LiquidityStateV4, market *MarketState) (*PoolKeys, error) {
	if state == nil || market == nil {
		return nil, errors.New("pool state and market are required")
	}

	program := solana.MustPublicKey(domain.RaydiumAMMV4)
	authority, err := AMMAuthority(program)
	if err != nil {
		return nil, err
	}
	marketAuthority, err := MarketAuthority(state.MarketProgramID, state.MarketID)
	if err != nil {
		return nil, err
	}

	return &PoolKeys{
		ID:               id,
		BaseMint:         state.BaseMint,
		QuoteMint:        state.QuoteMint,
		LPMint:           state.LPMint,
		BaseDecimals:     uint8(state.BaseDecimal),
		QuoteDecimals:    uint8(state.QuoteDecimal),
		ProgramID:        program,
		Authority:        authority,
		OpenOrders:       state.OpenOrders,
		TargetOrders:     state.TargetOrders,
		BaseVault:        state.BaseVault,
		QuoteVault:       state.QuoteVault,
		MarketProgramID:  state.MarketProgramID,
		MarketID:         state.MarketID,
		MarketAuthority:  marketAuthority,
		MarketBaseVault:  state.BaseVault,
		MarketQuoteVault: state.QuoteVault,
		MarketBids:       market.Bids,
		MarketAsks:       market.Asks,
		MarketEventQueue: market.EventQueue,
	}, nil
}

// AMMAuthority derives the v4 pool authority.
func AMMAuthority(program solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("amm authority")}, program)
	return addr, err
}

// MarketAuthority derives the market vault signer by trying nonces 0 through 99.
func MarketAuthority(marketProgram, marketID solana.PublicKey) (solana.PublicKey, error) {
	nonce := make([]byte, 8)
	for i := uint64(0); i < 100; i++ {
		binary.LittleEndian.PutUint64(nonce, i)
		addr, err := solana.CreateProgramAddress([][]byte{marketID[:], nonce}, marketProgram)
		if err == nil {
			return addr, nil
		}
	}
	return solana.PublicKey{}, fmt.Errorf("no vault signer nonce for market %s", marketID)
}

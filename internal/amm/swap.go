package amm

import (
	"encoding/binary"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/solana"
)

const swapBaseInTag = 9

// SwapBaseIn builds a fixed-input v4 swap from userSource to userDestination.
func SwapBaseIn(keys *PoolKeys, userSource, userDestination, owner solana.PublicKey, amountIn, minAmountOut uint64) solana.Instruction {
	data := make([]byte, 17)
	data[0] = swapBaseInTag
	binary.LittleEndian.PutUint64(data[1:], amountIn)
	binary.LittleEndian.PutUint64(data[9:], minAmountOut)

	return solana.Instruction{
		ProgramID: keys.ProgramID,
		Accounts: []solana.AccountMeta{
			solana.Meta(solana.MustPublicKey(domain.TokenProgramID), false, false),
			solana.Meta(keys.ID, false, true),
			solana.Meta(keys.Authority, false, false),
			solana.Meta(keys.OpenOrders, false, true),
			solana.Meta(keys.TargetOrders, false, true),
			solana.Meta(keys.BaseVault, false, true),
			solana.Meta(keys.QuoteVault, false, true),
			solana.Meta(keys.MarketProgramID, false, false),
			solana.Meta(keys.MarketID, false, true),
			solana.Meta(keys.MarketBids, false, true),
			solana.Meta(keys.MarketAsks, false, true),
			solana.Meta(keys.MarketEventQueue, false, true),
			solana.Meta(keys.MarketBaseVault, false, true),
			solana.Meta(keys.MarketQuoteVault, false, true),
			solana.Meta(keys.MarketAuthority, false, false),
			solana.Meta(userSource, false, true),
			solana.Meta(userDestination, false, true),
			solana.Meta(owner, true, false),
		},
		Data: data,
	}
}

package decoder

import (
	"solana-pool-sniper/internal/domain"
)

// NoIndex marks an optional account slot as absent.
const NoIndex = -1

// VariantConfig describes where a pool-creation instruction keeps its accounts.
type VariantConfig struct {
	Variant   domain.DexVariant
	ProgramID string
	// MinAccounts is the smallest account list a candidate instruction may carry.
	MinAccounts int
	// Discriminator, when set, must prefix the decoded instruction data.
	Discriminator []byte

	PoolIndex      int
	BaseMintIndex  int
	QuoteMintIndex int
	LPMintIndex    int
	// RequireLPMint drops candidates that do not resolve an LP mint.
	RequireLPMint bool
}

// RaydiumConfig returns the Raydium AMM v4 initialize layout.
func RaydiumConfig() VariantConfig {
	return VariantConfig{
		Variant:        domain.VariantRaydium,
		ProgramID:      domain.RaydiumAMMV4,
		MinAccounts:    4,
		PoolIndex:      0,
		BaseMintIndex:  1,
		QuoteMintIndex: 2,
		LPMintIndex:    3,
		RequireLPMint:  true,
	}
}

// MeteoraConfig returns the Meteora pool creation layout.
func MeteoraConfig() VariantConfig {
	return VariantConfig{
		Variant:        domain.VariantMeteora,
		ProgramID:      domain.MeteoraProgramID,
		MinAccounts:    6,
		PoolIndex:      0,
		BaseMintIndex:  1,
		QuoteMintIndex: 2,
		LPMintIndex:    3,
	}
}

// PumpSwapConfig returns the PumpSwap create_pool layout.
func PumpSwapConfig() VariantConfig {
	return VariantConfig{
		Variant:        domain.VariantPumpSwap,
		ProgramID:      domain.PumpSwapProgramID,
		MinAccounts:    2,
		PoolIndex:      0,
		BaseMintIndex:  1,
		QuoteMintIndex: 2,
		LPMintIndex:    3,
	}
}

// ConfigFor returns the built-in config of a variant.
func ConfigFor(v domain.DexVariant) (VariantConfig, bool) {
	switch v {
	case domain.VariantRaydium:
		return RaydiumConfig(), true
	case domain.VariantMeteora:
		return MeteoraConfig(), true
	case domain.VariantPumpSwap:
		return PumpSwapConfig(), true
	default:
		return VariantConfig{}, false
	}
}

package domain

// DexVariant identifies the DEX protocol a pool was created on.
type DexVariant string

const (
	VariantRaydium  DexVariant = "raydium"
	VariantMeteora  DexVariant = "meteora"
	VariantPumpSwap DexVariant = "pumpswap"
)

// String returns the string representation of DexVariant.
func (v DexVariant) String() string {
	return string(v)
}

// IsValid checks if the variant is a known value.
func (v DexVariant) IsValid() bool {
	return v == VariantRaydium || v == VariantMeteora || v == VariantPumpSwap
}

// ParseDexVariant maps a config alias to a variant.
func ParseDexVariant(s string) (DexVariant, bool) {
	v := DexVariant(s)
	return v, v.IsValid()
}

package domain

import "time"

// DetectedPool is a canonical pool-creation record produced by a decoder.
// It is treated as an immutable value by every downstream stage.
type DetectedPool struct {
	Variant    DexVariant
	PoolID     string
	BaseMint   string
	QuoteMint  string
	LPMint     string // empty when the variant has no LP mint
	Signature  string // creating transaction
	Slot       int64
	DetectedAt time.Time
}

// HasWSOLQuote reports whether the pool is quoted in wrapped SOL.
func (p DetectedPool) HasWSOLQuote() bool {
	return p.QuoteMint == WSOLMint
}

// FilterResult is the outcome of one filter for one evaluation round.
type FilterResult struct {
	Name     string
	OK       bool
	Message  string
	Code     string // decision code, empty on pass
	Duration time.Duration
}

// TokenMetadata is the on-chain Metaplex metadata of a mint.
type TokenMetadata struct {
	Mint      string
	Name      string
	Symbol    string
	URI       string
	IsMutable bool
}

// DisplayName returns name and symbol with "Unknown" fallbacks.
func (m *TokenMetadata) DisplayName() (string, string) {
	if m == nil {
		return "Unknown", "Unknown"
	}
	name, symbol := m.Name, m.Symbol
	if name == "" {
		name = "Unknown"
	}
	if symbol == "" {
		symbol = "Unknown"
	}
	return name, symbol
}

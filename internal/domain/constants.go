package domain

// Well-known Solana addresses.
const (
	// WSOLMint is the wrapped SOL mint, the only accepted quote asset.
	WSOLMint = "So11111111111111111111111111111111111111112"

	SystemProgramID    = "11111111111111111111111111111111"
	TokenProgramID     = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	AssociatedTokenID  = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	ComputeBudgetID    = "ComputeBudget111111111111111111111111111111"
	SysvarRentID       = "SysvarRent111111111111111111111111111111111"
	SysvarClockID      = "SysvarC1ock11111111111111111111111111111111"
	MetaplexProgramID  = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"
	OpenBookProgramID  = "srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX"
	RaydiumAMMV4       = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	MeteoraProgramID   = "Eo7WjKq67rjJQSZxS6z3YkapzY3eMj6Xy8X5EQVn5UaB"
	PumpSwapProgramID  = "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA"
	LamportsPerSOL     = 1_000_000_000
	WSOLDecimals       = 9
)

// IsSystemAccount reports whether addr is a program or sysvar id that can
// never be a pool account.
func IsSystemAccount(addr string) bool {
	switch addr {
	case SystemProgramID, TokenProgramID, AssociatedTokenID, SysvarRentID, SysvarClockID:
		return true
	}
	return false
}

// Package filter decides whether a detected pool is worth trading. Each
// Filter inspects one property; Pipeline runs them in a fixed order and
// requires consecutive clean rounds before accepting a pool.
package filter

import (
	"context"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/events"
	"solana-pool-sniper/internal/solana"
)

// Filter names, in pipeline order.
const (
	NameRouteGate           = "route-gate"
	NameMutable             = "mutable"
	NameRenounced           = "renounced"
	NameToken2022           = "token2022"
	NameSocials             = "socials"
	NameImage               = "image"
	NamePoolSize            = "pool-size"
	NamePoolAge             = "pool-age"
	NameHolderConcentration = "holder-concentration"
	NameLPProtection        = "lp-protection"
)

// Filter checks one property of a pool. Check never returns an error: I/O
// faults become a failing result.
type Filter interface {
	Name() string
	Check(ctx context.Context, pool domain.DetectedPool) domain.FilterResult
}

// Chain is the read-only RPC surface the filters use.
type Chain interface {
	GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error)
	GetProgramAccounts(ctx context.Context, programID string, filter solana.ProgramAccountsFilter) ([]solana.ProgramAccount, error)
	GetTokenSupply(ctx context.Context, mint string) (*solana.TokenAmount, error)
	GetTokenLargestAccounts(ctx context.Context, mint string) ([]solana.TokenAccountBalance, error)
	GetTokenAccountBalance(ctx context.Context, account string) (*solana.TokenAmount, error)
	GetSignaturesForAddress(ctx context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error)
}

func pass(name, msg string) domain.FilterResult {
	return domain.FilterResult{Name: name, OK: true, Message: msg}
}

func fail(name string, code events.Code, msg string) domain.FilterResult {
	return domain.FilterResult{Name: name, OK: false, Message: msg, Code: code.String()}
}

// accountData fetches and decodes an account. A missing account yields nil data.
func accountData(ctx context.Context, chain Chain, pubkey string) (*solana.AccountInfo, []byte, error) {
	info, err := chain.GetAccountInfo(ctx, pubkey)
	if err != nil {
		return nil, nil, err
	}
	if info == nil {
		return nil, nil, nil
	}
	data, err := info.Bytes()
	if err != nil {
		return nil, nil, err
	}
	return info, data, nil
}

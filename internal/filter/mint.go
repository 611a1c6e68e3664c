package filter

import (
	"context"
	"fmt"
	"strings"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/events"
	"solana-pool-sniper/internal/services"
)

// DefaultDeniedExtensions are Token-2022 extensions that let the issuer tax
// or seize holder balances.
var DefaultDeniedExtensions = []services.ExtensionType{
	services.ExtTransferFeeConfig,
	services.ExtPermanentDelegate,
}

func loadMint(ctx context.Context, chain Chain, mint string) (*services.Mint, error) {
	info, data, err := accountData(ctx, chain, mint)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("mint account %s not found", mint)
	}
	return services.DecodeMint(info.Owner, data)
}

// Renounced requires the mint and freeze authorities to be unset.
type Renounced struct {
	Chain Chain
}

// Name implements Filter.
func (f *Renounced) Name() string { return NameRenounced }

// Check implements Filter.
func (f *Renounced) Check(ctx context.Context, pool domain.DetectedPool) domain.FilterResult {
	m, err := loadMint(ctx, f.Chain, pool.BaseMint)
	if err != nil {
		return fail(f.Name(), events.SkipRenounced, fmt.Sprintf("Mint lookup failed: %v", err))
	}
	if m.MintAuthority != nil {
		return fail(f.Name(), events.SkipRenounced, "Mint authority not renounced")
	}
	if m.FreezeAuthority != nil {
		return fail(f.Name(), events.SkipRenounced, "Token is freezable")
	}
	return pass(f.Name(), "Mint and freeze authority renounced")
}

// Token2022 rejects Token-2022 mints carrying a denied extension. Classic
// SPL mints pass.
type Token2022 struct {
	Chain  Chain
	Denied []services.ExtensionType
}

// Name implements Filter.
func (f *Token2022) Name() string { return NameToken2022 }

// Check implements Filter.
func (f *Token2022) Check(ctx context.Context, pool domain.DetectedPool) domain.FilterResult {
	m, err := loadMint(ctx, f.Chain, pool.BaseMint)
	if err != nil {
		return fail(f.Name(), events.SkipToken2022Extension, fmt.Sprintf("Token-2022 check failed: %v", err))
	}
	if !m.Token2022 {
		return pass(f.Name(), "Not a Token-2022 token")
	}

	denied := f.Denied
	if denied == nil {
		denied = DefaultDeniedExtensions
	}
	var found []string
	for _, ext := range denied {
		if m.HasExtension(ext) {
			found = append(found, ext.String())
		}
	}
	if len(found) > 0 {
		return fail(f.Name(), events.SkipToken2022Extension,
			"Token-2022 has denied extensions: "+strings.Join(found, ", "))
	}
	return pass(f.Name(), "Token-2022 extensions are acceptable")
}

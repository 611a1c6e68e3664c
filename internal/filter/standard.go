package filter

import (
	"time"

	"solana-pool-sniper/internal/events"
	"solana-pool-sniper/internal/services"
)

// Deps are the collaborators shared by the standard filters.
type Deps struct {
	Chain    Chain
	Quotes   services.QuoteClient
	Metadata services.MetadataService
	Holders  services.HoldersService
	Recorder *events.Recorder
}

// Thresholds parameterise the standard filters.
type Thresholds struct {
	BuyAmount           uint64 // lamports priced by the route gate
	MaxPriceImpactBps   int
	MinSocialLinks      int
	MinPoolSize         uint64 // lamports, 0 disables
	MaxPoolSize         uint64 // lamports, 0 disables
	PoolMaxAge          time.Duration
	HoldersTop1MaxRatio float64
	HoldersTop5MaxRatio float64
	RequireLPProtection bool
	DeniedExtensions    []services.ExtensionType
}

// Standard returns the ten filters in evaluation order.
func Standard(d Deps, t Thresholds) []Filter {
	return []Filter{
		&RouteImpact{Quotes: d.Quotes, Amount: t.BuyAmount, MaxImpactBps: t.MaxPriceImpactBps},
		&Mutable{Metadata: d.Metadata},
		&Renounced{Chain: d.Chain},
		&Token2022{Chain: d.Chain, Denied: t.DeniedExtensions},
		&Socials{Metadata: d.Metadata, MinLinks: t.MinSocialLinks},
		&Image{Metadata: d.Metadata},
		&PoolSize{Chain: d.Chain, Min: t.MinPoolSize, Max: t.MaxPoolSize},
		&PoolAge{Chain: d.Chain, MaxAge: t.PoolMaxAge},
		&HolderConcentration{Holders: d.Holders, Top1Max: t.HoldersTop1MaxRatio, Top5Max: t.HoldersTop5MaxRatio},
		&LPProtection{Chain: d.Chain, Required: t.RequireLPProtection, Recorder: d.Recorder},
	}
}

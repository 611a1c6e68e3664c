package services

import (
	"context"
	"fmt"
	"time"

	"solana-pool-sniper/internal/cache"
	"solana-pool-sniper/internal/solana"
)

// DefaultHoldersTTL is how long a holder snapshot is reused.
const DefaultHoldersTTL = 5 * time.Minute

// TokenReader reads mint supply and the largest token accounts.
type TokenReader interface {
	GetTokenSupply(ctx context.Context, mint string) (*solana.TokenAmount, error)
	GetTokenLargestAccounts(ctx context.Context, mint string) ([]solana.TokenAccountBalance, error)
}

// Holder is one token account with its share of supply.
type Holder struct {
	Address string
	Amount  uint64
	Share   float64 // 0..1
}

// Concentration summarises how much of the supply the largest holders own.
// Ratios are fractions of supply in [0, 1].
type Concentration struct {
	Top1         float64
	TopN         float64
	TotalHolders int
}

// HoldersService reports holder concentration of a mint.
type HoldersService interface {
	GetHolderConcentration(ctx context.Context, mint string, topN int) (*Concentration, error)
}

// LargestAccountsService derives concentration from getTokenSupply and
// getTokenLargestAccounts.
type LargestAccountsService struct {
	tokens TokenReader
	cache  *cache.TTL[[]Holder]
}

// NewLargestAccountsService creates a holders service. A zero ttl selects
// DefaultHoldersTTL.
func NewLargestAccountsService(tokens TokenReader, ttl time.Duration) *LargestAccountsService {
	if ttl == 0 {
		ttl = DefaultHoldersTTL
	}
	return &LargestAccountsService{
		tokens: tokens,
		cache:  cache.NewTTL[[]Holder](ttl),
	}
}

// Holders returns the largest holders of mint, largest first.
func (s *LargestAccountsService) Holders(ctx context.Context, mint string) ([]Holder, error) {
	if h, ok := s.cache.Get(mint); ok {
		return h, nil
	}

	supply, err := s.tokens.GetTokenSupply(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("get token supply: %w", err)
	}
	if supply == nil || supply.Amount == 0 {
		s.cache.Set(mint, nil)
		return nil, nil
	}

	largest, err := s.tokens.GetTokenLargestAccounts(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("get largest accounts: %w", err)
	}

	holders := make([]Holder, 0, len(largest))
	for _, acc := range largest {
		holders = append(holders, Holder{
			Address: acc.Address,
			Amount:  acc.Amount,
			Share:   float64(acc.Amount) / float64(supply.Amount),
		})
	}
	s.cache.Set(mint, holders)
	return holders, nil
}

// GetHolderConcentration returns the top-1 and top-N share of supply.
// A mint with zero supply or no holders reports zero concentration.
func (s *LargestAccountsService) GetHolderConcentration(ctx context.Context, mint string, topN int) (*Concentration, error) {
	holders, err := s.Holders(ctx, mint)
	if err != nil {
		return nil, err
	}
	c := &Concentration{TotalHolders: len(holders)}
	if len(holders) == 0 {
		return c, nil
	}

	c.Top1 = holders[0].Share
	for i := 0; i < topN && i < len(holders); i++ {
		c.TopN += holders[i].Share
	}
	return c, nil
}

var _ HoldersService = (*LargestAccountsService)(nil)
